package normalize

type FrontendAddress struct {
	ID                string `json:"id"`
	Label             string `json:"label"`
	FirstName         string `json:"firstName"`
	LastName          string `json:"lastName"`
	FullName          string `json:"fullName"`
	Company           string `json:"company"`
	Line1             string `json:"line1"`
	Line2             string `json:"line2"`
	City              string `json:"city"`
	State             string `json:"state"`
	Zip               string `json:"zip"`
	Country           string `json:"country"`
	CountryCode       string `json:"countryCode"`
	Phone             string `json:"phone"`
	IsBilling         bool   `json:"isBilling"`
	IsShipping        bool   `json:"isShipping"`
	IsDefaultBilling  bool   `json:"isDefaultBilling"`
	IsDefaultShipping bool   `json:"isDefaultShipping"`
}

func Address(rec Record) FrontendAddress {
	first := Str(First(rec, "firstName", "first_name"))
	last := Str(First(rec, "lastName", "last_name"))

	return FrontendAddress{
		ID:                Str(First(rec, "addressId", "id")),
		Label:             Str(First(rec, "label", "addressLabel")),
		FirstName:         first,
		LastName:          last,
		FullName:          Name(first, last, Str(rec["name"]), Str(rec["company"])),
		Company:           Str(First(rec, "company", "companyName")),
		Line1:             Str(First(rec, "addressLine1", "address1", "street1")),
		Line2:             Str(First(rec, "addressLine2", "address2", "street2")),
		City:              Str(rec["city"]),
		State:             Str(First(rec, "stateName", "state", "stateCode")),
		Zip:               Str(First(rec, "zipCode", "zip", "postalCode")),
		Country:           Str(First(rec, "countryName", "country")),
		CountryCode:       Str(First(rec, "countryCode", "country_iso2")),
		Phone:             Str(First(rec, "phoneNumber", "phone")),
		IsBilling:         Bool(First(rec, "isBilling", "is_billing")),
		IsShipping:        Bool(First(rec, "isShipping", "is_shipping")),
		IsDefaultBilling:  Bool(First(rec, "isDefaultBilling", "is_default_billing")),
		IsDefaultShipping: Bool(First(rec, "isDefaultShipping", "is_default_shipping")),
	}
}

func Addresses(recs []Record) []FrontendAddress {
	out := make([]FrontendAddress, 0, len(recs))
	for _, rec := range recs {
		out = append(out, Address(rec))
	}
	return out
}
