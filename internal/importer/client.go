// Package importer drives the recipe import pipeline: the HTTP client for
// the extraction service, the single-flight task manager that owns the one
// in-flight import, and the link-drop watcher.
package importer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rishavrajjain/recipewallet/internal/logger"
	"github.com/rishavrajjain/recipewallet/internal/wallet"
)

// ServerError carries a failure reason the extraction service explained
// itself. Its message is surfaced verbatim as the more specific error.
type ServerError struct {
	Message string
}

// Error implements the error interface.
func (e *ServerError) Error() string { return e.Message }

// ErrUnreachable is returned when the extraction service cannot be reached
// or answers with something other than its failure envelope.
var ErrUnreachable = errors.New("recipe service unreachable")

// ErrEmptyRecipe is returned when the service reports success but the
// extraction produced no usable recipe.
var ErrEmptyRecipe = errors.New("no recipe found at link")

const defaultImportTimeout = 90 * time.Second

// flexibleIngredient accepts the two wire shapes the extraction service may
// produce for a single ingredient: a bare string or a structured object.
// Both decode to the same wallet.Ingredient.
type flexibleIngredient struct {
	Name     string
	Category string
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *flexibleIngredient) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		f.Name = s
		return nil
	}
	var obj struct {
		Name     string `json:"name"`
		Category string `json:"category"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("ingredient is neither string nor object: %w", err)
	}
	f.Name = obj.Name
	f.Category = obj.Category
	return nil
}

// recipeDTO is the extraction service's recipe representation.
type recipeDTO struct {
	Title         string               `json:"title"`
	Description   string               `json:"description"`
	ImageURL      string               `json:"imageUrl"`
	PrepTime      int                  `json:"prepTime"`
	CookTime      int                  `json:"cookTime"`
	Difficulty    string               `json:"difficulty"`
	Nutrition     *wallet.Nutrition    `json:"nutrition"`
	Ingredients   []flexibleIngredient `json:"ingredients"`
	Steps         []string             `json:"steps"`
	IsFromReel    bool                 `json:"isFromReel"`
	ExtractedFrom string               `json:"extractedFrom"`
	CreatorHandle string               `json:"creatorHandle"`
	CreatorName   string               `json:"creatorName"`
}

// envelope is the service's success envelope for POST /import-recipe.
type envelope struct {
	Success bool       `json:"success"`
	Recipe  *recipeDTO `json:"recipe"`
	Error   string     `json:"error"`
}

// detailError is the body the service sends with an explained non-200.
type detailError struct {
	Detail string `json:"detail"`
}

// Client talks to the recipe extraction service.
type Client struct {
	endpoint string
	http     *http.Client
	log      *logger.Logger
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithTimeout bounds how long a single import request may run. Extraction
// can involve slow third-party fetches, so the default is generous.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.http.Timeout = d }
}

// NewClient creates an extraction-service client. baseURL points at the
// service root; the import endpoint is derived from it.
func NewClient(baseURL string, log *logger.Logger, opts ...ClientOption) *Client {
	c := &Client{
		endpoint: strings.TrimRight(strings.TrimSpace(baseURL), "/") + "/import-recipe",
		http:     &http.Client{Timeout: defaultImportTimeout},
		log:      log,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ImportFromLink POSTs the link to the extraction service and returns the
// normalized recipe. Errors are typed: a *ServerError carries the service's
// own explanation, anything else wraps ErrUnreachable or ErrEmptyRecipe.
func (c *Client) ImportFromLink(ctx context.Context, link string) (wallet.Recipe, error) {
	link = strings.TrimSpace(link)
	if link == "" || !strings.Contains(link, ".") {
		return wallet.Recipe{}, fmt.Errorf("link %q does not look like a URL", link)
	}

	body, err := json.Marshal(map[string]string{"link": link})
	if err != nil {
		return wallet.Recipe{}, fmt.Errorf("importer: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return wallet.Recipe{}, fmt.Errorf("importer: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.log.Debug("importer: POST %s link=%s", c.endpoint, link)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			// Cancellation is not a service failure; let it propagate as-is.
			return wallet.Recipe{}, ctx.Err()
		}
		// Keep the transport error in the chain: Client.Timeout expiry
		// matches context.DeadlineExceeded and gets its own user message.
		return wallet.Recipe{}, fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return wallet.Recipe{}, fmt.Errorf("%w: read response: %v", ErrUnreachable, err)
	}

	if resp.StatusCode != http.StatusOK {
		// The service explains some failures with a {"detail": ...} body.
		var de detailError
		if json.Unmarshal(raw, &de) == nil && strings.TrimSpace(de.Detail) != "" {
			return wallet.Recipe{}, &ServerError{Message: de.Detail}
		}
		return wallet.Recipe{}, fmt.Errorf("%w: status %d", ErrUnreachable, resp.StatusCode)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return wallet.Recipe{}, fmt.Errorf("%w: decode envelope: %v", ErrUnreachable, err)
	}
	if !env.Success || env.Recipe == nil {
		if strings.TrimSpace(env.Error) != "" {
			return wallet.Recipe{}, &ServerError{Message: env.Error}
		}
		return wallet.Recipe{}, ErrEmptyRecipe
	}

	recipe := normalizeRecipe(*env.Recipe, link, c.log)
	if recipe.Name == "" && len(recipe.Ingredients) == 0 && len(recipe.Steps) == 0 {
		return wallet.Recipe{}, ErrEmptyRecipe
	}
	return recipe, nil
}

// normalizeRecipe maps the wire recipe into the domain type. Malformed
// ingredients fail individually; the rest of the batch survives.
func normalizeRecipe(dto recipeDTO, link string, log *logger.Logger) wallet.Recipe {
	ingredients := make([]wallet.Ingredient, 0, len(dto.Ingredients))
	for _, ing := range dto.Ingredients {
		name := strings.TrimSpace(ing.Name)
		if name == "" {
			log.Debug("importer: dropping ingredient with empty name")
			continue
		}
		ingredients = append(ingredients, wallet.Ingredient{
			Name:     name,
			Category: wallet.NormalizeCategory(ing.Category),
		})
	}

	steps := make([]string, 0, len(dto.Steps))
	for _, s := range dto.Steps {
		if trimmed := strings.TrimSpace(s); trimmed != "" {
			steps = append(steps, trimmed)
		}
	}

	recipe := wallet.Recipe{
		ID:          wallet.NewID(),
		Name:        strings.TrimSpace(dto.Title),
		Description: dto.Description,
		ImageURL:    dto.ImageURL,
		PrepTime:    dto.PrepTime,
		CookTime:    dto.CookTime,
		Difficulty:  dto.Difficulty,
		Nutrition:   dto.Nutrition,
		Ingredients: ingredients,
		IsFromReel:  dto.IsFromReel,
		Steps:       steps,
		CreatedAt:   time.Now().UTC(),
	}
	if dto.ExtractedFrom != "" || dto.CreatorHandle != "" || dto.CreatorName != "" || link != "" {
		recipe.Provenance = &wallet.Provenance{
			ExtractedFrom: dto.ExtractedFrom,
			CreatorHandle: dto.CreatorHandle,
			CreatorName:   dto.CreatorName,
			OriginalURL:   link,
		}
	}
	return recipe
}
