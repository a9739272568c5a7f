package wizard

var quickRemarks = []string{
	"Payment due within 30 days",
	"Free delivery included",
	"Bulk discount applied",
	"Items subject to availability",
	"Installation service available",
}

// QuickRemarks lists the canned phrases offered on the remarks step.
func QuickRemarks() []string {
	return append([]string(nil), quickRemarks...)
}
