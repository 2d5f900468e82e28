package advisor

import (
	"fmt"
	"strings"

	"github.com/bobmcallan/pacer/internal/models"
)

// buildPrompt renders the generation prompt from the holdings snapshot and the
// accountability scorecard. The response contract is restated verbatim every
// cycle so the oracle cannot drift into prose.
func buildPrompt(portfolio *models.Portfolio, card *models.Scorecard, date string) string {
	var sb strings.Builder

	sb.WriteString("You are a disciplined intraday trading advisor for an Indian equity portfolio.\n")
	fmt.Fprintf(&sb, "Today is %s. Propose a realistic daily profit target in INR and up to 5 trade signals.\n\n", date)

	sb.WriteString("Current holdings:\n")
	if portfolio == nil || len(portfolio.Holdings) == 0 {
		sb.WriteString("- none\n")
	} else {
		for _, h := range portfolio.Holdings {
			fmt.Fprintf(&sb, "- %s.%s: %d @ avg %.2f\n", h.Symbol, h.Exchange, h.Quantity, h.AvgPrice)
		}
	}
	sb.WriteString("\n")

	sb.WriteString(card.Render())
	sb.WriteString("\n")

	sb.WriteString(`Respond with ONLY a JSON object, no markdown fences, matching exactly:
{
  "target": {"target": <number, INR>, "rationale": "<string>", "confidence": <integer 0-100>},
  "signals": [
    {
      "symbol": "<string>", "exchange": "<string, e.g. NSE>",
      "side": "BUY" | "SELL", "quantity": <positive integer>,
      "trigger_type": "MARKET" | "LIMIT" | "ZONE",
      "trigger_price": <number, LIMIT only>,
      "trigger_low": <number, ZONE only>, "trigger_high": <number, ZONE only>,
      "confidence": <integer 0-100>, "rationale": "<string>"
    }
  ]
}
SELL signals are only valid for symbols currently held. An empty signals array is acceptable.`)

	return sb.String()
}
