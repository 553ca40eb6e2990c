package privacy

import (
	"strings"

	"github.com/brianvoe/gofakeit/v7"
)

// Generator produces plausible replacement values for scrubbed
// entities in fake mode. The zero locale is generic; "vi" biases phone
// numbers and names to Vietnamese forms.
type Generator struct {
	faker  *gofakeit.Faker
	locale string
}

// NewGenerator creates a generator. A zero seed gives random output;
// pass a fixed seed for reproducible scrubbing.
func NewGenerator(locale string, seed uint64) *Generator {
	return &Generator{
		faker:  gofakeit.New(seed),
		locale: strings.ToLower(locale),
	}
}

// vietnameseSurnames seeds locale-aware person names; gofakeit has no
// locale concept of its own.
var vietnameseSurnames = []string{"Nguyen", "Tran", "Le", "Pham", "Hoang", "Vu", "Dang", "Bui"}

// Fake returns a replacement value for the entity type. Unknown types
// get a generic word so the caller never re-emits the original.
func (g *Generator) Fake(entityType string) string {
	switch entityType {
	case TypeEmail:
		return g.faker.Email()
	case TypePhone:
		if g.locale == "vi" {
			return g.faker.Numerify("09########")
		}
		return g.faker.Phone()
	case TypeCreditCard:
		return g.faker.CreditCardNumber(nil)
	case TypeIP:
		return g.faker.IPv4Address()
	case TypePerson:
		if g.locale == "vi" {
			surname := vietnameseSurnames[g.faker.Number(0, len(vietnameseSurnames)-1)]
			return surname + " " + g.faker.FirstName()
		}
		return g.faker.Name()
	case TypeAddress:
		return g.faker.Address().Address
	default:
		return g.faker.Word()
	}
}
