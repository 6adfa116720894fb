// Package cloud talks to the remote document store that holds one wallet
// document per authenticated user. Loads fail soft per list, saves are
// serialized per user so the last save to complete wins, and signing out
// clears the in-memory cache deterministically.
package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rishavrajjain/recipewallet/internal/logger"
	"github.com/rishavrajjain/recipewallet/internal/wallet"
)

// IdentityProvider supplies the current user identity. An empty string means
// no user is signed in.
type IdentityProvider interface {
	CurrentUserID() string
}

// IdentityFunc adapts a function to the IdentityProvider interface.
type IdentityFunc func() string

// CurrentUserID implements IdentityProvider.
func (f IdentityFunc) CurrentUserID() string { return f() }

// document is the typed DTO for the whole user document. The snapshot is
// stored in full under fixed field names; there is no untyped intermediate
// and no redundant id-list mirror.
type document struct {
	Recipes      json.RawMessage `json:"recipes"`
	Collections  json.RawMessage `json:"collections"`
	ShoppingList json.RawMessage `json:"shoppingList"`
	Profile      json.RawMessage `json:"profile,omitempty"` // opaque, preserved on save
	UpdatedAt    time.Time       `json:"updatedAt"`
}

const (
	defaultUserAgent = "recipewallet/0.1"
	requestTimeout   = 30 * time.Second
	saveQueueDepth   = 16
)

// Client reads and writes the per-user wallet document. Safe for concurrent
// use.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
	identity  IdentityProvider
	log       *logger.Logger

	mu      sync.Mutex
	cached  *wallet.Snapshot // last loaded or saved snapshot
	profile json.RawMessage  // opaque profile blob carried through saves
	saves   chan saveRequest
	started bool
	done    chan struct{}
}

type saveRequest struct {
	userID string
	snap   wallet.Snapshot
}

// NewClient builds a Client for the document store at baseURL.
func NewClient(baseURL string, identity IdentityProvider, log *logger.Logger) (*Client, error) {
	base, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL:   base,
		http:      &http.Client{Timeout: requestTimeout},
		userAgent: defaultUserAgent,
		identity:  identity,
		log:       log,
		saves:     make(chan saveRequest, saveQueueDepth),
		done:      make(chan struct{}),
	}, nil
}

// Load fetches the user's document and decodes the three lists. A decode
// error for an individual list yields an empty list for that slot; partial
// data is preferable to none. With no signed-in identity it returns an empty
// snapshot without touching the network.
func (c *Client) Load(ctx context.Context) (wallet.Snapshot, error) {
	userID := c.identity.CurrentUserID()
	if userID == "" {
		return wallet.Snapshot{}, nil
	}

	var doc document
	if err := c.do(ctx, http.MethodGet, c.docPath(userID), nil, &doc); err != nil {
		return wallet.Snapshot{}, err
	}

	var snap wallet.Snapshot
	decodeList(c.log, "recipes", doc.Recipes, &snap.Recipes)
	decodeList(c.log, "collections", doc.Collections, &snap.Collections)
	decodeList(c.log, "shoppingList", doc.ShoppingList, &snap.ShoppingList)

	c.mu.Lock()
	cached := snap.Clone()
	c.cached = &cached
	c.profile = doc.Profile
	c.mu.Unlock()

	return snap, nil
}

// decodeList decodes one raw list, dropping malformed records individually:
// if whole-list decode fails, each element is retried alone and bad elements
// are skipped. Whatever survives is kept.
func decodeList[T any](log *logger.Logger, name string, raw json.RawMessage, dest *[]T) {
	if len(raw) == 0 {
		return
	}
	if err := json.Unmarshal(raw, dest); err == nil {
		return
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		log.Warn("cloud: %s list malformed, treating as empty", name)
		*dest = nil
		return
	}
	kept := make([]T, 0, len(elems))
	for _, e := range elems {
		var v T
		if err := json.Unmarshal(e, &v); err != nil {
			log.Warn("cloud: dropping malformed %s record: %v", name, err)
			continue
		}
		kept = append(kept, v)
	}
	*dest = kept
}

// EnqueueSave schedules a save of the full snapshot for the current user.
// It never blocks the caller: if the queue is full the oldest pending save
// is dropped, since every save carries the complete snapshot and only the
// last one to run matters. With no identity the call is a no-op.
func (c *Client) EnqueueSave(snap wallet.Snapshot) {
	userID := c.identity.CurrentUserID()
	if userID == "" {
		return
	}

	c.mu.Lock()
	if !c.started {
		c.started = true
		go c.saveLoop()
	}
	c.mu.Unlock()

	req := saveRequest{userID: userID, snap: snap.Clone()}
	for {
		select {
		case c.saves <- req:
			return
		default:
			// Queue full: discard the oldest pending save and retry.
			select {
			case <-c.saves:
			default:
			}
		}
	}
}

// saveLoop drains the save queue one request at a time, which keeps saves
// for the same user strictly sequential.
func (c *Client) saveLoop() {
	for {
		select {
		case req := <-c.saves:
			ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
			if err := c.save(ctx, req.userID, req.snap); err != nil {
				c.log.Warn("cloud: save for %s failed: %v", req.userID, err)
			}
			cancel()
		case <-c.done:
			return
		}
	}
}

// save uploads the full snapshot as the user's document. The write is a
// merge-upsert on the server side: fields absent from the payload are
// preserved, so the opaque profile blob rides along untouched.
func (c *Client) save(ctx context.Context, userID string, snap wallet.Snapshot) error {
	// Ignore saves for a user who signed out while the request was queued.
	if c.identity.CurrentUserID() != userID {
		return nil
	}

	doc, err := encodeDocument(snap, c.currentProfile())
	if err != nil {
		return err
	}
	if err := c.do(ctx, http.MethodPut, c.docPath(userID), doc, nil); err != nil {
		return err
	}

	c.mu.Lock()
	cached := snap.Clone()
	c.cached = &cached
	c.mu.Unlock()
	return nil
}

func encodeDocument(snap wallet.Snapshot, profile json.RawMessage) (*document, error) {
	recipes, err := json.Marshal(snap.Recipes)
	if err != nil {
		return nil, fmt.Errorf("cloud: marshal recipes: %w", err)
	}
	collections, err := json.Marshal(snap.Collections)
	if err != nil {
		return nil, fmt.Errorf("cloud: marshal collections: %w", err)
	}
	shopping, err := json.Marshal(snap.ShoppingList)
	if err != nil {
		return nil, fmt.Errorf("cloud: marshal shopping list: %w", err)
	}
	return &document{
		Recipes:      recipes,
		Collections:  collections,
		ShoppingList: shopping,
		Profile:      profile,
		UpdatedAt:    time.Now().UTC(),
	}, nil
}

func (c *Client) currentProfile() json.RawMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.profile
}

// Cached returns the last loaded or saved snapshot, or false if none is
// cached.
func (c *Client) Cached() (wallet.Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cached == nil {
		return wallet.Snapshot{}, false
	}
	return c.cached.Clone(), true
}

// SignOut clears the cached snapshot and profile. The clear is immediate and
// deterministic; queued saves for the signed-out user become no-ops.
func (c *Client) SignOut() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cached = nil
	c.profile = nil
}

// Close stops the background save loop.
func (c *Client) Close() {
	close(c.done)
}

func (c *Client) docPath(userID string) string {
	return "/users/" + url.PathEscape(userID) + "/wallet"
}

func (c *Client) do(ctx context.Context, method, path string, body, dest any) error {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("cloud: marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	reqURL := c.baseURL.ResolveReference(&url.URL{Path: path})
	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), reader)
	if err != nil {
		return fmt.Errorf("cloud: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("cloud: execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound && method == http.MethodGet {
		// No document yet for this user. Treat as empty. Writes must not
		// take this shortcut: a 404 on save means the save did not happen.
		return nil
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("cloud: %s %s returned status %d", method, path, resp.StatusCode)
	}
	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("cloud: decode response: %w", err)
	}
	return nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("cloud: base URL is empty")
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("cloud: parse base URL %q: %w", raw, err)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
