package config

type SecurityLevel int

const (
	SecurityPublic    SecurityLevel = iota // No authentication
	SecurityAccess                         // Access token required
	SecurityLibrarian                      // Access token with the librarian role required
)

// EndpointSecurityConfig maps HTTP route names to their required security level
var EndpointSecurityConfig = map[string]SecurityLevel{
	"Health": SecurityPublic,

	// Catalogue
	"ListAvailable":  SecurityAccess,
	"SearchByTitle":  SecurityAccess,
	"GetItemDetails": SecurityAccess,
	"GetItemDebt":    SecurityAccess,

	// Reservations act on the caller
	"ReserveItem":       SecurityAccess,
	"CancelReservation": SecurityAccess,

	// Caller's own account
	"GetMyHoldings":     SecurityAccess,
	"GetMyHistory":      SecurityAccess,
	"GetMyDebt":         SecurityAccess,
	"ListMySettlements": SecurityAccess,

	// Payments
	"CreateItemPaymentIntent":  SecurityAccess,
	"ConfirmItemPayment":       SecurityAccess,
	"CreateBatchPaymentIntent": SecurityAccess,
	"ConfirmBatchPayment":      SecurityAccess,

	// Librarian desk
	"CreateItem":     SecurityLibrarian,
	"UpdateItem":     SecurityLibrarian,
	"DeleteItem":     SecurityLibrarian,
	"AssignItem":     SecurityLibrarian,
	"ReleaseItem":    SecurityLibrarian,
	"GetItemHistory": SecurityLibrarian,
	"RegisterPerson": SecurityLibrarian,
	"GetPerson":      SecurityLibrarian,
	"UpdatePerson":   SecurityLibrarian,
	"DeletePerson":   SecurityLibrarian,
	"GetPersonDebt":  SecurityLibrarian,
}

// GetSecurityLevel returns the security level for a given route
func GetSecurityLevel(route string) SecurityLevel {
	if level, exists := EndpointSecurityConfig[route]; exists {
		return level
	}
	// Default to highest security for unknown endpoints
	return SecurityLibrarian
}
