package anonymize

import (
	"encoding/binary"
	"fmt"

	"github.com/brianvoe/gofakeit/v7"
)

// GofakeitFunc is the FakeFunc backed by gofakeit. A fresh, locally-seeded
// Faker is created per call from seededInput, so the result depends only
// on (method, seededInput) and never on process-global generator state —
// required for determinism under concurrent callers.
func GofakeitFunc(method string, seededInput []byte) (any, error) {
	faker := gofakeit.New(seedFrom(seededInput))
	switch method {
	case "email":
		return faker.Email(), nil
	case "phone_number":
		return faker.Phone(), nil
	case "ssn":
		return faker.SSN(), nil
	case "name":
		return faker.Name(), nil
	case "first_name":
		return faker.FirstName(), nil
	case "last_name":
		return faker.LastName(), nil
	case "street_address":
		return faker.Address().Address, nil
	case "ipv4_address":
		return faker.IPv4Address(), nil
	case "username":
		return faker.Username(), nil
	case "company":
		return faker.Company(), nil
	case "credit_card_number":
		return faker.CreditCardNumber(nil), nil
	case "uuid":
		return faker.UUID(), nil
	default:
		return nil, fmt.Errorf("anonymize: unknown fake method %q", method)
	}
}

func seedFrom(b []byte) uint64 {
	var buf [8]byte
	copy(buf[:], b)
	return binary.BigEndian.Uint64(buf[:])
}
