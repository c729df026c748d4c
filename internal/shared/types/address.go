package types

// Address represents a physical address
type Address struct {
	Street     string `json:"street"`
	District   string `json:"district,omitempty"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country"` // ISO 3166-1 alpha-2, default "PE"
}

// NewAddress creates a new address with Peru as default country
func NewAddress(street, city string) Address {
	return Address{
		Street:  street,
		City:    city,
		Country: "PE",
	}
}

// ContactInfo represents contact information
type ContactInfo struct {
	Email  string `json:"email,omitempty"`
	Phone  string `json:"phone,omitempty"`
	Mobile string `json:"mobile,omitempty"`
}
