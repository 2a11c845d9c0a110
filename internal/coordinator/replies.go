package coordinator

import (
	"fmt"
	"strings"

	"github.com/soyeahso/sawt/internal/domain"
)

// Fixed customer-facing replies. Agents reply in the customer's language;
// these cover turns no agent answered.
const (
	replyClarify     = "عذراً، ما قدرت أكمل طلبك بهذي المعلومات. ممكن توضح أكثر؟"
	replyRetry       = "عذراً، عندنا مشكلة مؤقتة. ممكن تعيد المحاولة بعد لحظات؟"
	replyInternal    = "عذراً، صار خطأ غير متوقع. ممكن تعيد صياغة طلبك؟"
	replyOrderNumber = "رقم طلبك: %s"
	replyConfirmed   = "طلبك رقم %s مؤكد. شكراً لك!"
	replyEscalated   = "تم تحويل محادثتك لأحد موظفينا وبيتواصل معك قريباً."
)

func terminalReply(s *domain.Session) string {
	if s.Phase == domain.PhaseConfirmed {
		return fmt.Sprintf(replyConfirmed, s.Order.ID)
	}
	return replyEscalated
}

func priceMismatchReply(changes []domain.PriceChange, totals domain.Totals, currency string) string {
	var b strings.Builder
	b.WriteString("تغيّرت بعض الأصناف في طلبك قبل التأكيد:\n")
	for _, c := range changes {
		name := c.Name
		if name == "" {
			name = c.ItemID
		}
		if !c.Available {
			fmt.Fprintf(&b, "- %s: غير متوفر حالياً وتمت إزالته\n", name)
			continue
		}
		fmt.Fprintf(&b, "- %s: %s ← %s\n", name, c.OldPrice.StringFixed(2), c.NewPrice.StringFixed(2))
	}
	total := totals.Total.StringFixed(2)
	if currency != "" {
		total += " " + currency
	}
	fmt.Fprintf(&b, "الإجمالي الجديد: %s. تبي نأكد الطلب؟", total)
	return b.String()
}
