package agent

import (
	"fmt"
	"strings"
	"time"

	"github.com/soyeahso/sawt/internal/domain"
	"github.com/soyeahso/sawt/internal/routing"
)

// PromptConfig controls system prompt generation.
type PromptConfig struct {
	Phase          domain.Phase
	RestaurantName string
	Tools          []ToolDef
	ExtraPrompt    string
	Now            time.Time
}

// phaseInstructions holds the operating instructions of each phase. An agent
// only ever sees its own entry.
var phaseInstructions = map[domain.Phase]string{
	domain.PhaseGreeting: `You greet customers and find out why they are contacting us.
- Record the reason with set_intent.
- If they want to order, hand off to location.
- If they have a complaint, apologise, tell them a staff member will follow up and end the conversation.
- Answer questions about opening hours with restaurant_status.`,

	domain.PhaseLocation: `You find out whether the customer wants delivery or pickup.
- For delivery, check the district with check_delivery_district before setting it.
- If the district is not covered, offer the suggestions or pickup.
- Once set_order_type succeeds, hand off to order.`,

	domain.PhaseOrder: `You help the customer choose items from the menu.
- Use search_menu to find items; never invent items or prices.
- Add, change or remove cart lines with the order tools.
- If the customer wants to change delivery or pickup, hand off to location.
- When the customer is done, hand off to checkout.`,

	domain.PhaseCheckout: `You finalise the order.
- Show the cart and total with get_current_order or calculate_total.
- Apply a promo code only when the customer gives one.
- Collect the customer's name and mobile number with set_customer.
- Call confirm_order only after the customer explicitly agrees to the total. The order is placed only by that call.
- If the customer wants to change items, hand off to order; to change the address, hand off to location.`,
}

// BuildSystemPrompt constructs the system prompt for one phase agent.
func BuildSystemPrompt(cfg PromptConfig) string {
	var b strings.Builder

	// Identity
	name := cfg.RestaurantName
	if name == "" {
		name = "the restaurant"
	}
	fmt.Fprintf(&b, "You are the %s assistant of %s, taking orders by chat.\n\n", cfg.Phase, name)

	// Date context
	now := cfg.Now
	if now.IsZero() {
		now = time.Now()
	}
	fmt.Fprintf(&b, "Current time: %s\n\n", now.Format("2006-01-02 15:04"))

	// Guidelines
	b.WriteString("Guidelines:\n")
	b.WriteString("- Reply in the customer's language; default to Arabic.\n")
	b.WriteString("- Keep replies short.\n\n")

	if ins, ok := phaseInstructions[cfg.Phase]; ok {
		b.WriteString(ins)
		b.WriteString("\n")
	}

	// Routing tags
	var tags []string
	for _, sig := range routing.Allowed(cfg.Phase) {
		if tag := SignalTag(sig); tag != "" {
			tags = append(tags, tag)
		}
	}
	if len(tags) > 0 {
		b.WriteString("\n## Handoff\n\n")
		b.WriteString("To move the conversation on, end your reply with exactly one of these tags. Without a tag you stay in this step.\n")
		for _, t := range tags {
			fmt.Fprintf(&b, "- %s\n", t)
		}
	}

	// Tool definitions
	if len(cfg.Tools) > 0 {
		b.WriteString("\n## Available Tools\n\n")
		b.WriteString("You can call tools by outputting a fenced code block with the language tag `tool_call`:\n\n")
		b.WriteString("```tool_call\n{\"tool\": \"tool_name\", \"input\": {\"param\": \"value\"}}\n```\n\n")
		b.WriteString("After a tool is executed, the result will be provided. You may call multiple tools before giving your final response.\n\n")
		for _, t := range cfg.Tools {
			fmt.Fprintf(&b, "### %s\n%s\n", t.Name, t.Description)
			if t.InputSchema != "" {
				fmt.Fprintf(&b, "Input schema: %s\n", t.InputSchema)
			}
			b.WriteString("\n")
		}
	}

	// Extra/custom prompt
	if cfg.ExtraPrompt != "" {
		b.WriteString("\n")
		b.WriteString(cfg.ExtraPrompt)
		b.WriteString("\n")
	}

	return b.String()
}
