// Package openfoodfacts looks up packaged foods on Open Food Facts so they
// can be saved to the catalog.
package openfoodfacts

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/saadjs/bitelog/internal/errors"
)

const (
	defaultBaseURL = "https://world.openfoodfacts.org"
	userAgent      = "bitelog/1.0 (+https://github.com/saadjs/bitelog)"
)

// ErrNotFound is returned when the barcode or query matched no usable
// product.
var ErrNotFound = errors.New("openfoodfacts: product not found")

// Product holds nutrition for one portion. Values come from the per-serving
// figures when the product has them, otherwise from the per-100g figures
// with a 100 g portion.
type Product struct {
	Code        string
	Brand       string
	Name        string
	PortionSize float64
	PortionUnit string
	Calories    float64
	ProteinG    float64
	FatG        float64
	CarbsG      float64
	FiberG      float64
}

// NetCarbsG is total carbohydrate minus fiber, floored at zero.
func (p Product) NetCarbsG() float64 {
	return max(p.CarbsG-p.FiberG, 0)
}

type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

func (c *Client) base() string {
	base := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if base == "" {
		return defaultBaseURL
	}
	return base
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 12 * time.Second}
}

func (c *Client) LookupBarcode(ctx context.Context, barcode string) (Product, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return Product{}, errors.New("barcode is required")
	}
	var parsed offResponse
	if err := c.getJSON(ctx, fmt.Sprintf("%s/api/v2/product/%s.json", c.base(), url.PathEscape(barcode)), &parsed); err != nil {
		return Product{}, err
	}
	if parsed.Status != 1 || strings.TrimSpace(parsed.Product.ProductName) == "" {
		return Product{}, errors.Wrapf(ErrNotFound, "barcode %q", barcode)
	}
	p := parsed.Product.toProduct()
	if p.Code == "" {
		p.Code = barcode
	}
	return p, nil
}

// SearchProducts runs a free-text search and drops results without a name.
func (c *Client) SearchProducts(ctx context.Context, query string, limit int) ([]Product, error) {
	if limit <= 0 {
		limit = 10
	}
	u := fmt.Sprintf("%s/cgi/search.pl?search_terms=%s&search_simple=1&action=process&json=1&page_size=%d",
		c.base(), url.QueryEscape(strings.TrimSpace(query)), limit)
	var parsed offSearchResponse
	if err := c.getJSON(ctx, u, &parsed); err != nil {
		return nil, err
	}
	var out []Product
	for _, p := range parsed.Products {
		if strings.TrimSpace(p.ProductName) == "" {
			continue
		}
		out = append(out, p.toProduct())
	}
	if len(out) == 0 {
		return nil, errors.Wrapf(ErrNotFound, "query %q", query)
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, u string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return errors.Wrap(err, "create openfoodfacts request")
	}
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return errors.Wrap(err, "execute openfoodfacts request")
	}
	defer resp.Body.Close()
	slog.Debug("openfoodfacts request", "url", u, "status", resp.StatusCode, "elapsed", time.Since(start))

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "read openfoodfacts response")
	}
	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Errorf("openfoodfacts request failed with status %d", resp.StatusCode)
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return errors.Wrap(err, "decode openfoodfacts response")
	}
	return nil
}

type offResponse struct {
	Status  int        `json:"status"`
	Product offProduct `json:"product"`
}

type offSearchResponse struct {
	Products []offProduct `json:"products"`
}

type offProduct struct {
	Code                string         `json:"code"`
	ProductName         string         `json:"product_name"`
	Brands              string         `json:"brands"`
	ServingSize         string         `json:"serving_size"`
	ServingQuantity     float64        `json:"serving_quantity"`
	ServingQuantityUnit string         `json:"serving_quantity_unit"`
	Nutriments          map[string]any `json:"nutriments"`
}

func (p offProduct) toProduct() Product {
	out := Product{
		Code:  strings.TrimSpace(p.Code),
		Brand: firstBrand(p.Brands),
		Name:  strings.TrimSpace(p.ProductName),
	}
	size, unit, ok := p.serving()
	suffix := "_serving"
	if _, hasKcal := floatAny(p.Nutriments["energy-kcal_serving"]); !ok || !hasKcal {
		size, unit, suffix = 100, "g", "_100g"
	}
	out.PortionSize, out.PortionUnit = size, unit
	out.Calories = nutriment(p.Nutriments, "energy-kcal"+suffix)
	out.ProteinG = nutriment(p.Nutriments, "proteins"+suffix)
	out.FatG = nutriment(p.Nutriments, "fat"+suffix)
	out.CarbsG = nutriment(p.Nutriments, "carbohydrates"+suffix)
	out.FiberG = nutriment(p.Nutriments, "fiber"+suffix)
	return out
}

func (p offProduct) serving() (float64, string, bool) {
	if p.ServingQuantity > 0 {
		unit := strings.TrimSpace(p.ServingQuantityUnit)
		if unit == "" {
			unit = "g"
		}
		return p.ServingQuantity, unit, true
	}
	parts := strings.Fields(p.ServingSize)
	if len(parts) >= 2 {
		if v, err := strconv.ParseFloat(strings.ReplaceAll(parts[0], ",", "."), 64); err == nil && v > 0 {
			return v, parts[1], true
		}
	}
	return 0, "", false
}

// firstBrand keeps the first of a comma-separated brand list.
func firstBrand(brands string) string {
	first, _, _ := strings.Cut(brands, ",")
	return strings.TrimSpace(first)
}

func nutriment(n map[string]any, key string) float64 {
	v, ok := floatAny(n[key])
	if !ok || v < 0 {
		return 0
	}
	return v
}

func floatAny(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
