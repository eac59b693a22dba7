package credential

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/suite"

	"idem/internal/identity/models"
)

type ExtractorSuite struct {
	suite.Suite
}

func TestExtractorSuite(t *testing.T) {
	suite.Run(t, new(ExtractorSuite))
}

func (s *ExtractorSuite) validEnvelope() map[string]any {
	raw := `{
		"@context": ["https://www.w3.org/2018/credentials/v1"],
		"type": ["VerifiableCredential", "IdentityCredential"],
		"issuer": "did:example:issuer",
		"issuanceDate": "2026-01-15T10:00:00Z",
		"credentialSubject": {
			"id": "did:example:subject",
			"givenName": "Jane",
			"email": "jane@x.com"
		}
	}`
	var obj map[string]any
	s.Require().NoError(json.Unmarshal([]byte(raw), &obj))
	return obj
}

func (s *ExtractorSuite) TestIsCredential() {
	s.Run("complete envelope detected", func() {
		s.True(IsCredential(s.validEnvelope()))
	})

	for _, field := range []string{"@context", "type", "issuer", "issuanceDate", "credentialSubject"} {
		s.Run("missing "+field+" rejected", func() {
			obj := s.validEnvelope()
			delete(obj, field)
			s.False(IsCredential(obj))
		})

		s.Run("null "+field+" rejected", func() {
			obj := s.validEnvelope()
			obj[field] = nil
			s.False(IsCredential(obj))
		})
	}

	s.Run("type array without tag rejected", func() {
		obj := s.validEnvelope()
		obj["type"] = []any{"IdentityCredential"}
		s.False(IsCredential(obj))
	})

	s.Run("nil object rejected", func() {
		s.False(IsCredential(nil))
	})
}

func (s *ExtractorSuite) TestParseCredential() {
	s.Run("whole payload", func() {
		raw, err := json.Marshal(s.validEnvelope())
		s.Require().NoError(err)

		cred, ok := ParseCredential(string(raw))
		s.Require().True(ok)
		s.Equal("did:example:issuer", cred.Issuer)
		s.Equal("2026-01-15T10:00:00Z", cred.IssuanceDate)
		s.Contains(cred.Type, models.CredentialTag)
	})

	s.Run("one-level envelope unwrap", func() {
		raw, err := json.Marshal(map[string]any{"credential": s.validEnvelope()})
		s.Require().NoError(err)

		cred, ok := ParseCredential(string(raw))
		s.Require().True(ok)
		s.Equal("did:example:issuer", cred.Issuer)
	})

	s.Run("plain JSON is not a credential", func() {
		cred, ok := ParseCredential(`{"name":"Jane"}`)
		s.Nil(cred)
		s.False(ok)
	})

	s.Run("unparsable payload is not a credential", func() {
		cred, ok := ParseCredential("not json at all")
		s.Nil(cred)
		s.False(ok)
	})

	s.Run("issuer object form", func() {
		obj := s.validEnvelope()
		obj["issuer"] = map[string]any{"id": "did:example:org", "name": "Example Org"}
		raw, err := json.Marshal(obj)
		s.Require().NoError(err)

		cred, ok := ParseCredential(string(raw))
		s.Require().True(ok)
		s.Equal("did:example:org", cred.Issuer)
	})
}

func (s *ExtractorSuite) TestExtract() {
	s.Run("alias precedence", func() {
		attrs, err := Extract(models.Credential{
			CredentialSubject: map[string]any{
				"givenName":   "Jane",
				"name":        "J. Doe",
				"email":       "jane@x.com",
				"phoneNumber": "+15550001234",
				"dob":         "1990-04-01",
			},
		})
		s.Require().NoError(err)
		s.Equal("Jane", attrs.Name)
		s.Equal("jane@x.com", attrs.Email)
		s.Equal("+15550001234", attrs.Phone)
		s.Equal("1990-04-01", attrs.DateOfBirth)
	})

	s.Run("residual keys excluding id", func() {
		attrs, err := Extract(models.Credential{
			CredentialSubject: map[string]any{
				"id":         "did:example:subject",
				"name":       "Jane",
				"department": "Engineering",
				"clearance":  "L2",
			},
		})
		s.Require().NoError(err)
		s.Equal(map[string]any{"department": "Engineering", "clearance": "L2"}, attrs.AdditionalData)
	})

	s.Run("additionalData absent when no residue", func() {
		attrs, err := Extract(models.Credential{
			CredentialSubject: map[string]any{"name": "Jane"},
		})
		s.Require().NoError(err)
		s.Nil(attrs.AdditionalData)
	})

	s.Run("nil subject yields empty set", func() {
		attrs, err := Extract(models.Credential{})
		s.Require().NoError(err)
		s.True(attrs.IsEmpty())
	})
}
