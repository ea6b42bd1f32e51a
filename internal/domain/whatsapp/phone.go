// internal/domain/whatsapp/phone.go
package whatsapp

import "strings"

// ToWaID converts a local msisdn (0803...) to the transport's wa id form
// (234803...). Numbers already in wa id form pass through unchanged.
func ToWaID(phone string) string {
	phone = strings.TrimSpace(phone)
	if strings.HasPrefix(phone, "0") && len(phone) == 11 {
		return "234" + phone[1:]
	}
	return phone
}

// ToLocal converts a wa id (234803...) back to the local msisdn form
// (0803...) used as the roster key.
func ToLocal(waID string) string {
	waID = strings.TrimSpace(waID)
	if strings.HasPrefix(waID, "234") && len(waID) == 13 {
		return "0" + waID[3:]
	}
	return waID
}
