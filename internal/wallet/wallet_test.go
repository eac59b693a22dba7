package wallet

import (
	"context"
	"errors"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/suite"

	"idem/internal/identity/models"
	"idem/internal/identity/ports"
	"idem/internal/wallet/store"
	dErrors "idem/pkg/domain-errors"
	"idem/pkg/platform/sentinel"
)

type WalletSuite struct {
	suite.Suite
	store  *store.InMemoryStore
	wallet *Wallet
}

func TestWalletSuite(t *testing.T) {
	suite.Run(t, new(WalletSuite))
}

func (s *WalletSuite) SetupTest() {
	s.store = store.NewInMemoryStore()

	var err error
	s.wallet, err = Create(s.store)
	s.Require().NoError(err)
}

func (s *WalletSuite) credential(id, name string) models.Credential {
	return models.Credential{
		ID:           id,
		Context:      []string{"https://www.w3.org/2018/credentials/v1"},
		Type:         []string{models.CredentialTag},
		Issuer:       "did:example:issuer",
		IssuanceDate: "2026-08-01T00:00:00Z",
		CredentialSubject: map[string]any{
			"id":    "did:example:subject",
			"name":  name,
			"email": "jane@x.com",
			"dept":  "Eng",
		},
	}
}

func (s *WalletSuite) TestCreate() {
	s.Run("nil store rejected", func() {
		_, err := Create(nil)
		s.Error(err)
	})

	s.Run("fresh wallets get distinct DIDs", func() {
		other, err := Create(store.NewInMemoryStore())
		s.Require().NoError(err)

		did1, _ := s.wallet.GetDID(context.Background())
		did2, _ := other.GetDID(context.Background())
		s.NotEqual(did1, did2)
	})
}

func (s *WalletSuite) TestRestore() {
	s.Run("same passphrase restores same DID", func() {
		first, err := Restore("correct horse battery staple", store.NewInMemoryStore())
		s.Require().NoError(err)
		second, err := Restore("correct horse battery staple", store.NewInMemoryStore())
		s.Require().NoError(err)

		did1, _ := first.GetDID(context.Background())
		did2, _ := second.GetDID(context.Background())
		s.Equal(did1, did2)
	})

	s.Run("empty passphrase rejected", func() {
		_, err := Restore("", store.NewInMemoryStore())
		s.Error(err)
	})
}

func (s *WalletSuite) TestStoreCredential() {
	ctx := context.Background()

	s.Run("assigns id when missing", func() {
		err := s.wallet.StoreCredential(ctx, s.credential("", "Jane"))
		s.Require().NoError(err)

		creds, err := s.wallet.GetAllCredentials(ctx)
		s.Require().NoError(err)
		s.Require().Len(creds, 1)
		s.Contains(creds[0].ID, "urn:uuid:")
	})

	s.Run("keeps issuer-supplied id", func() {
		err := s.wallet.StoreCredential(ctx, s.credential("vc-keep", "Jane"))
		s.Require().NoError(err)

		_, err = s.store.Get(ctx, "vc-keep")
		s.NoError(err)
	})
}

func (s *WalletSuite) TestCreatePresentation() {
	ctx := context.Background()
	s.Require().NoError(s.wallet.StoreCredential(ctx, s.credential("vc-1", "Jane")))

	s.Run("full presentation carries signed token", func() {
		presentation, err := s.wallet.CreatePresentation(ctx, []string{"vc-1"})
		s.Require().NoError(err)
		s.Len(presentation.Credentials, 1)
		s.NotEmpty(presentation.Token)

		did, _ := s.wallet.GetDID(ctx)
		s.Equal(did, presentation.Holder)

		// The token must parse as a JWT issued by the holder.
		claims := jwt.MapClaims{}
		_, _, err = jwt.NewParser().ParseUnverified(presentation.Token, claims)
		s.Require().NoError(err)
		s.Equal(did, claims["iss"])
	})

	s.Run("unknown credential id fails", func() {
		_, err := s.wallet.CreatePresentation(ctx, []string{"vc-missing"})
		s.Error(err)
	})

	s.Run("empty id list rejected", func() {
		_, err := s.wallet.CreatePresentation(ctx, nil)
		s.Error(err)
	})
}

func (s *WalletSuite) TestSelectiveDisclosure() {
	ctx := context.Background()
	s.Require().NoError(s.wallet.StoreCredential(ctx, s.credential("vc-1", "Jane")))

	presentation, err := s.wallet.CreateSelectiveDisclosurePresentation(ctx, []models.DisclosureRequest{
		{CredentialID: "vc-1", Attributes: []string{"name"}},
	})
	s.Require().NoError(err)
	s.Require().Len(presentation.Credentials, 1)

	subject := presentation.Credentials[0].CredentialSubject
	s.Equal("Jane", subject["name"])
	s.Equal("did:example:subject", subject["id"])
	s.NotContains(subject, "email")
	s.NotContains(subject, "dept")
	s.Nil(presentation.Credentials[0].Proof)
}

type ManagerSuite struct {
	suite.Suite
}

func TestManagerSuite(t *testing.T) {
	suite.Run(t, new(ManagerSuite))
}

func (s *ManagerSuite) TestLazyInit() {
	calls := 0
	mgr := NewManager(func(context.Context) (ports.Wallet, error) {
		calls++
		return Create(store.NewInMemoryStore())
	})

	first, err := mgr.Get(context.Background())
	s.Require().NoError(err)
	second, err := mgr.Get(context.Background())
	s.Require().NoError(err)

	s.Same(first, second)
	s.Equal(1, calls)
}

func (s *ManagerSuite) TestReset() {
	calls := 0
	mgr := NewManager(func(context.Context) (ports.Wallet, error) {
		calls++
		return Create(store.NewInMemoryStore())
	})

	_, err := mgr.Get(context.Background())
	s.Require().NoError(err)

	mgr.Reset()

	_, err = mgr.Get(context.Background())
	s.Require().NoError(err)
	s.Equal(2, calls)
}

func (s *ManagerSuite) TestInitFailureNotCached() {
	boom := errors.New("backend down")
	fail := true
	mgr := NewManager(func(context.Context) (ports.Wallet, error) {
		if fail {
			return nil, boom
		}
		return Create(store.NewInMemoryStore())
	})

	_, err := mgr.Get(context.Background())
	s.Require().Error(err)
	s.ErrorIs(err, boom)

	fail = false
	_, err = mgr.Get(context.Background())
	s.NoError(err)
}

func (s *ManagerSuite) TestNoFactory() {
	mgr := NewManager(nil)
	_, err := mgr.Get(context.Background())
	s.Require().Error(err)
	s.ErrorIs(err, sentinel.ErrInvalidState)
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
}
