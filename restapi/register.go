package restapi

import (
	"fmt"

	"github.com/gin-gonic/gin"
)

type HTTPVerb int

const (
	Unknown HTTPVerb = iota
	GET
	DELETE
	POST
	PUT
	PATCH
)

// RestMethod pairs an HTTP verb and path with its handler.
type RestMethod struct {
	Verb    HTTPVerb
	Path    string
	Handler func(c *gin.Context)
}

type methodTable struct {
	methods map[string]RestMethod
	order   []string
}

func newMethodTable() *methodTable {
	return &methodTable{methods: make(map[string]RestMethod)}
}

// RegisterMethod is a helper function for Register.
func (mt *methodTable) RegisterMethod(verb HTTPVerb, path string, h func(c *gin.Context)) error {
	return mt.Register(RestMethod{
		Verb:    verb,
		Path:    path,
		Handler: h,
	})
}

// Register adds a REST method to the table, rejecting duplicates.
func (mt *methodTable) Register(m RestMethod) error {
	key := fmt.Sprintf("%d_%s", m.Verb, m.Path)
	if _, exists := mt.methods[key]; exists {
		return fmt.Errorf("can't add %s, an existing handler in REST method map exists", key)
	}
	mt.methods[key] = m
	mt.order = append(mt.order, key)
	return nil
}

// mount wires every registered method into the router group.
func (mt *methodTable) mount(g *gin.RouterGroup, wrap func(func(c *gin.Context)) func(c *gin.Context)) {
	for _, key := range mt.order {
		rm := mt.methods[key]
		switch rm.Verb {
		case GET:
			g.GET(rm.Path, wrap(rm.Handler))
		case DELETE:
			g.DELETE(rm.Path, wrap(rm.Handler))
		case POST:
			g.POST(rm.Path, wrap(rm.Handler))
		case PUT:
			g.PUT(rm.Path, wrap(rm.Handler))
		case PATCH:
			g.PATCH(rm.Path, wrap(rm.Handler))
		default:
			panic(fmt.Sprintf("HTTP verb %d not supported", rm.Verb))
		}
	}
}
