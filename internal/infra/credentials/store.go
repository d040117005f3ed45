package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	cache "github.com/patrickmn/go-cache"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/sqlinline"
)

// Decrypter turns stored ciphertext into a usable API key. The concrete
// implementation lives with the settings subsystem that encrypted it.
type Decrypter interface {
	Decrypt(ciphertext string) (string, error)
}

// PlaintextDecrypter passes the stored value through as-is, for local
// development databases that hold unencrypted keys.
type PlaintextDecrypter struct{}

func (PlaintextDecrypter) Decrypt(ciphertext string) (string, error) {
	return ciphertext, nil
}

const cacheTTL = 5 * time.Minute

// Store resolves decrypted provider credentials per (user, category).
// Resolved credentials are cached briefly so a five-step pipeline does not
// hit the database and the decrypter five times per job.
type Store struct {
	sql       infra.SQLExecutor
	decrypter Decrypter
	cache     *cache.Cache
}

func NewStore(sql infra.SQLExecutor, decrypter Decrypter) *Store {
	if decrypter == nil {
		decrypter = PlaintextDecrypter{}
	}
	return &Store{
		sql:       sql,
		decrypter: decrypter,
		cache:     cache.New(cacheTTL, 10*time.Minute),
	}
}

func (s *Store) Resolve(ctx context.Context, userID string, category domain.Step) (domain.ProviderCredential, error) {
	key := cacheKey(userID, category)
	if cached, ok := s.cache.Get(key); ok {
		return cached.(domain.ProviderCredential), nil
	}

	row := s.sql.QueryRow(ctx, sqlinline.QSelectUserCredential, userID, string(category))
	var (
		encrypted string
		props     []byte
	)
	if err := row.Scan(&encrypted, &props); err != nil {
		if infra.IsNoRows(err) {
			return domain.ProviderCredential{}, fmt.Errorf("%w: %s", domain.ErrNotConfigured, category)
		}
		return domain.ProviderCredential{}, err
	}

	apiKey, err := s.decrypter.Decrypt(strings.TrimSpace(encrypted))
	if err != nil {
		return domain.ProviderCredential{}, fmt.Errorf("decrypt %s credential: %w", category, err)
	}
	if apiKey == "" {
		return domain.ProviderCredential{}, fmt.Errorf("%w: %s", domain.ErrNotConfigured, category)
	}

	extra := map[string]string{}
	if len(props) > 0 {
		if err := json.Unmarshal(props, &extra); err != nil {
			return domain.ProviderCredential{}, fmt.Errorf("decode %s credential props: %w", category, err)
		}
	}

	cred := domain.ProviderCredential{APIKey: apiKey, Extra: extra}
	s.cache.Set(key, cred, cache.DefaultExpiration)
	return cred, nil
}

// Invalidate drops a cached credential, e.g. after the user rotates a key.
func (s *Store) Invalidate(userID string, category domain.Step) {
	s.cache.Delete(cacheKey(userID, category))
}

func cacheKey(userID string, category domain.Step) string {
	return userID + ":" + string(category)
}

var _ domain.CredentialSource = (*Store)(nil)
