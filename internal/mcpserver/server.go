// Package mcpserver exposes the ordering assistant as MCP tools over stdio,
// so an operator's assistant can drive conversations, inspect sessions and
// query the menu.
package mcpserver

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/soyeahso/sawt/internal/catalog"
	"github.com/soyeahso/sawt/internal/coordinator"
	"github.com/soyeahso/sawt/internal/domain"
	"github.com/soyeahso/sawt/internal/logging"
	"github.com/soyeahso/sawt/internal/store"
	"github.com/soyeahso/sawt/internal/version"
)

// Turns is the conversation surface the tools drive.
type Turns interface {
	HandleTurn(ctx context.Context, sessionID, message string) (*coordinator.TurnResult, error)
	Session(ctx context.Context, id string) (*domain.Session, error)
	Reset(ctx context.Context, id string) error
}

// Catalog is the read side of the restaurant data.
type Catalog interface {
	ListItems(ctx context.Context, category string) ([]catalog.MenuItem, error)
	Districts(ctx context.Context) ([]catalog.District, error)
	GetPromo(ctx context.Context, code string) (domain.Promo, error)
}

// Orders looks up confirmed orders.
type Orders interface {
	GetOrder(ctx context.Context, id string) (*store.OrderRecord, error)
}

// Deps are the collaborators behind the tools. Only Turns is required; the
// tools of a nil collaborator are not registered.
type Deps struct {
	Turns    Turns
	Menu     catalog.Searcher
	Coverage catalog.CoverageChecker
	Catalog  Catalog
	Orders   Orders
	Hours    *catalog.Hours
	Now      func() time.Time
}

// Server wraps an MCP server that exposes ordering tools.
type Server struct {
	deps  Deps
	log   *logging.Logger
	mcp   *server.MCPServer
	tools []string
}

// New creates a new MCP server with the given dependencies.
func New(deps Deps, log *logging.Logger) *Server {
	s := &Server{
		deps: deps,
		log:  log.Sub("mcp"),
	}
	if s.deps.Now == nil {
		s.deps.Now = time.Now
	}

	s.mcp = server.NewMCPServer(
		"sawt",
		version.Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()
	s.log.Debug().Strs("tools", s.tools).Msg("mcp tools registered")
	return s
}

// registerTools adds all tool definitions and their handlers to the MCP server.
func (s *Server) registerTools() {
	s.addTool(sendMessageTool, s.handleSendMessage)
	s.addTool(getSessionTool, s.handleGetSession)
	s.addTool(resetSessionTool, s.handleResetSession)
	if s.deps.Menu != nil {
		s.addTool(searchMenuTool, s.handleSearchMenu)
	}
	if s.deps.Coverage != nil {
		s.addTool(checkDistrictTool, s.handleCheckDistrict)
	}
	if s.deps.Catalog != nil {
		s.addTool(menuCategoriesTool, s.handleMenuCategories)
		s.addTool(itemsByCategoryTool, s.handleItemsByCategory)
		s.addTool(coveredAreasTool, s.handleCoveredAreas)
		s.addTool(promoDetailsTool, s.handlePromoDetails)
	}
	if s.deps.Orders != nil {
		s.addTool(orderStatusTool, s.handleOrderStatus)
	}
	if s.deps.Hours != nil {
		s.addTool(restaurantStatusTool, s.handleRestaurantStatus)
	}
}

func (s *Server) addTool(tool mcp.Tool, handler server.ToolHandlerFunc) {
	s.mcp.AddTool(tool, handler)
	s.tools = append(s.tools, tool.Name)
}

// Serve starts the MCP server on stdio. Stdout carries MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	s.log.Info().Msg("mcp server listening on stdio")
	return server.ServeStdio(s.mcp)
}
