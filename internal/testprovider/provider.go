// Package testprovider is an in-process identity provider speaking the Orbit endpoint
// protocol. It backs the package tests and the `orbit dev-provider` playground; it is
// not a production authorization server.
package testprovider

import (
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	defaultAccessTokenTTL = time.Hour
	authCodeTimeout       = 5 * time.Minute
	rsaKeyBits            = 2048
)

var (
	ErrUnknownClient     = errors.New("unknown client")
	ErrInvalidSecret     = errors.New("client secret incorrect")
	ErrRedirectMismatch  = errors.New("redirect_uri does not match")
	ErrCodeInvalid       = errors.New("authorization code invalid")
	ErrCodeExpired       = errors.New("authorization code expired")
	ErrChallengeFailed   = errors.New("code challenge failed")
	ErrRefreshInvalid    = errors.New("refresh token invalid")
	ErrNoUser            = errors.New("no user to sign in")
	ErrUnsupportedMethod = errors.New("code_challenge_method must be S256")
)

// User is an account the provider signs in.
type User struct {
	Sub           string
	Email         string
	Name          string
	Picture       string
	EmailVerified bool
}

type client struct {
	id           string
	secretHash   []byte
	redirectURIs []string
}

func (c *client) public() bool {
	return len(c.secretHash) == 0
}

// grant is what an authorization code or refresh token stands for.
type grant struct {
	clientID            string
	userSub             string
	scope               string
	redirectURI         string
	codeChallenge       string
	codeChallengeMethod string
	issuedAt            time.Time
}

// Failure is an injected response for the next request to an endpoint.
type Failure struct {
	Status int
	Body   string
}

// Provider holds clients, users and issued grants in memory.
type Provider struct {
	mu sync.Mutex

	key   *rsa.PrivateKey
	keyID string

	clients map[string]*client
	users   map[string]User
	signIn  string // sub of the user the authorize endpoint signs in

	codes   map[string]grant
	refresh map[string]grant
	revoked map[string]bool // access token jti or refresh token

	calls    map[string]int
	failures map[string][]Failure

	accessTokenTTL time.Duration
	rotateRefresh  bool
	omitExpiresIn  bool
	now            func() time.Time
}

// Option configures a Provider.
type Option func(*Provider)

func WithAccessTokenTTL(ttl time.Duration) Option {
	return func(p *Provider) {
		p.accessTokenTTL = ttl
	}
}

// WithRefreshRotation issues a new refresh token on every refresh grant.
func WithRefreshRotation(rotate bool) Option {
	return func(p *Provider) {
		p.rotateRefresh = rotate
	}
}

// WithoutExpiresIn leaves expires_in out of token responses.
func WithoutExpiresIn() Option {
	return func(p *Provider) {
		p.omitExpiresIn = true
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Provider) {
		p.now = now
	}
}

// New creates a provider with a fresh RSA signing key.
func New(opts ...Option) (*Provider, error) {
	key, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate RSA key: %w", err)
	}
	p := &Provider{
		key:            key,
		keyID:          uuid.NewString(),
		clients:        make(map[string]*client),
		users:          make(map[string]User),
		codes:          make(map[string]grant),
		refresh:        make(map[string]grant),
		revoked:        make(map[string]bool),
		calls:          make(map[string]int),
		failures:       make(map[string][]Failure),
		accessTokenTTL: defaultAccessTokenTTL,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// RegisterClient adds a client. An empty secret registers a public client. With no
// redirect URIs any redirect_uri is accepted.
func (p *Provider) RegisterClient(id, secret string, redirectURIs ...string) error {
	c := &client{id: id, redirectURIs: redirectURIs}
	if secret != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.MinCost)
		if err != nil {
			return fmt.Errorf("failed to hash client secret: %w", err)
		}
		c.secretHash = hash
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clients[id] = c
	return nil
}

// AddUser adds a user. The first user added is the one signed in by default.
func (p *Provider) AddUser(u User) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.users[u.Sub] = u
	if p.signIn == "" {
		p.signIn = u.Sub
	}
}

// SignInAs makes the authorize endpoint sign in the user with the given subject.
func (p *Provider) SignInAs(sub string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signIn = sub
}

// FailNext makes the next request to endpoint (e.g. "token") answer with f.
func (p *Provider) FailNext(endpoint string, f Failure) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures[endpoint] = append(p.failures[endpoint], f)
}

// Calls returns how many requests endpoint has received.
func (p *Provider) Calls(endpoint string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[endpoint]
}

// Revoked reports whether token (a refresh token or an access token's jti) was revoked.
func (p *Provider) Revoked(token string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.revoked[token]
}

// IssueRefreshToken creates a refresh token for sub directly, bypassing the
// authorization step.
func (p *Provider) IssueRefreshToken(clientID, sub, scope string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	token := uuid.NewString()
	p.refresh[token] = grant{clientID: clientID, userSub: sub, scope: scope, issuedAt: p.now()}
	return token
}

// hit counts a request and pops any injected failure.
func (p *Provider) hit(endpoint string) (Failure, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[endpoint]++
	queue := p.failures[endpoint]
	if len(queue) == 0 {
		return Failure{}, false
	}
	p.failures[endpoint] = queue[1:]
	return queue[0], true
}

func (p *Provider) authenticateClient(id, secret string) (*client, error) {
	c, ok := p.clients[id]
	if !ok {
		return nil, ErrUnknownClient
	}
	if c.public() {
		return c, nil
	}
	if err := bcrypt.CompareHashAndPassword(c.secretHash, []byte(secret)); err != nil {
		return nil, ErrInvalidSecret
	}
	return c, nil
}

func (c *client) allowsRedirect(uri string) bool {
	if len(c.redirectURIs) == 0 {
		return true
	}
	for _, allowed := range c.redirectURIs {
		if allowed == uri {
			return true
		}
	}
	return false
}
