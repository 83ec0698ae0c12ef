package main

import (
	"github.com/perchdb/perch"
	"github.com/perchdb/perch/restapi"
)

func main() {
	perch.ConfigureLogging()
	restapi.Main()
}
