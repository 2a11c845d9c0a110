package mcpserver

import "github.com/mark3labs/mcp-go/mcp"

var sendMessageTool = mcp.NewTool("send_message",
	mcp.WithDescription("Send a customer message to a conversation and return the assistant's reply, phase and order state."),
	mcp.WithString("session_id",
		mcp.Required(),
		mcp.Description("Conversation id; a new conversation starts when the id is unknown"),
	),
	mcp.WithString("message",
		mcp.Required(),
		mcp.Description("Customer message text"),
	),
)

var getSessionTool = mcp.NewTool("get_session",
	mcp.WithDescription("Get the stored state of a conversation: phase, cart, customer details and recent digest."),
	mcp.WithString("session_id",
		mcp.Required(),
		mcp.Description("Conversation id"),
	),
)

var resetSessionTool = mcp.NewTool("reset_session",
	mcp.WithDescription("Delete a conversation so the next message starts over from the greeting."),
	mcp.WithString("session_id",
		mcp.Required(),
		mcp.Description("Conversation id"),
	),
)

var searchMenuTool = mcp.NewTool("search_menu",
	mcp.WithDescription("Search the menu semantically. Returns matching items with price and availability."),
	mcp.WithString("query",
		mcp.Required(),
		mcp.Description("Dish name or description, Arabic or English"),
	),
	mcp.WithString("category",
		mcp.Description("Restrict results to one menu category"),
	),
)

var checkDistrictTool = mcp.NewTool("check_delivery_district",
	mcp.WithDescription("Check whether a district is covered for delivery, with its fee and ETA or close suggestions."),
	mcp.WithString("district",
		mcp.Required(),
		mcp.Description("District name as the customer typed it"),
	),
)

var menuCategoriesTool = mcp.NewTool("get_menu_categories",
	mcp.WithDescription("List the menu categories with how many items each holds and how many are available."),
)

var itemsByCategoryTool = mcp.NewTool("get_items_by_category",
	mcp.WithDescription("List every item of one menu category with price and availability."),
	mcp.WithString("category",
		mcp.Required(),
		mcp.Description("Category name as returned by get_menu_categories"),
	),
)

var coveredAreasTool = mcp.NewTool("get_covered_areas",
	mcp.WithDescription("List the districts covered for delivery with their fee and ETA."),
)

var promoDetailsTool = mcp.NewTool("get_promo_details",
	mcp.WithDescription("Get a promo code's terms and whether it can be used right now."),
	mcp.WithString("code",
		mcp.Required(),
		mcp.Description("Promo code, any case"),
	),
)

var orderStatusTool = mcp.NewTool("get_order_status",
	mcp.WithDescription("Get a confirmed order by its number: status, lines, totals and customer details."),
	mcp.WithString("order_id",
		mcp.Required(),
		mcp.Description("Order number, e.g. ORD-20260301170000-AB12"),
	),
)

var restaurantStatusTool = mcp.NewTool("get_restaurant_status",
	mcp.WithDescription("Tell whether the restaurant is open now and when it next opens or closes."),
)
