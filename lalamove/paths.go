package lalamove

import "strings"

const (
	BaseURLProduction = "https://rest.lalamove.com"
	BaseURLSandbox    = "https://rest.sandbox.lalamove.com"
)

// Versioned REST paths. Templated segments are substituted with PathFor.
const (
	PathQuotations       = "/v3/quotations"
	PathQuotationDetails = "/v3/quotations/:quotationId"
	PathPlaceOrder       = "/v3/orders"
	PathOrderDetails     = "/v3/orders/:orderId"
	PathDriverDetails    = "/v3/orders/:orderId/drivers/:driverId"
	PathWebhook          = "/v3/webhook"
	PathCancelOrder      = "/v3/orders/:orderId"
	PathCityInfo         = "/v3/cities"
)

// PathFor substitutes :param segments in a path template.
func PathFor(template string, params map[string]string) string {
	path := template
	for key, value := range params {
		path = strings.ReplaceAll(path, ":"+key, value)
	}
	return path
}
