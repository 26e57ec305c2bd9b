package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/ev-warranty/internal/fixture"
	"github.com/ukydev/ev-warranty/internal/handlers"
	"github.com/ukydev/ev-warranty/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Typical defects reported by service centers.
var issues = []string{
	"Capacity dropped below warranty threshold",
	"Intermittent isolation fault",
	"Grinding noise under load",
	"Fails to start charging session",
	"Overheating warning during fast charge",
	"Cell voltage imbalance",
	"Error code after software update",
}

var itemTypes = []models.ItemType{models.ItemRepair, models.ItemReplacement, models.ItemInspection}

// errNoCoverage means a vehicle cannot produce a claim right now.
var errNoCoverage = errors.New("no covered part available")

// apiError is a non-2xx answer of the API.
type apiError struct {
	Status  int
	Code    string
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("api status %d: %s: %s", e.Status, e.Code, e.Message)
}

// apiClient calls the API as one user. A client built by login signs in
// again when its token is rejected.
type apiClient struct {
	baseURL  string
	username string
	password string
	client   *http.Client

	mu    sync.Mutex
	token string
}

func newAPIClient(baseURL string) *apiClient {
	return &apiClient{baseURL: strings.TrimRight(baseURL, "/"), client: &http.Client{Timeout: 10 * time.Second}}
}

func (c *apiClient) do(method, path string, in, out interface{}) error {
	var data []byte
	if in != nil {
		var err error
		if data, err = json.Marshal(in); err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}
	err := c.send(method, path, c.currentToken(), data, out)
	var apiErr *apiError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized || c.username == "" {
		return err
	}
	log.WithField("username", c.username).Info("Token rejected, signing in again")
	if err := c.authenticate(); err != nil {
		return err
	}
	return c.send(method, path, c.currentToken(), data, out)
}

func (c *apiClient) currentToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

func (c *apiClient) send(method, path, token string, data []byte, out interface{}) error {
	var body io.Reader
	if data != nil {
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var e handlers.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return &apiError{Status: resp.StatusCode, Code: e.Code, Message: e.Message}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// authenticate replaces the token with a fresh one for the stored credentials.
func (c *apiClient) authenticate() error {
	var res models.LoginResponse
	body, err := json.Marshal(models.LoginRequest{Username: c.username, Password: c.password})
	if err != nil {
		return err
	}
	if err := c.send(http.MethodPost, "/api/auth/login", "", body, &res); err != nil {
		return fmt.Errorf("login %s: %w", c.username, err)
	}
	c.mu.Lock()
	c.token = res.Token
	c.mu.Unlock()
	return nil
}

// login returns a client authenticated as username.
func login(baseURL, username, password string) (*apiClient, error) {
	c := newAPIClient(baseURL)
	c.username, c.password = username, password
	if err := c.authenticate(); err != nil {
		return nil, err
	}
	return c, nil
}

// simulator plays both sides of the claim workflow: the service center opens
// and submits claims, the manufacturer reviews and completes them.
type simulator struct {
	sc          *apiClient
	evm         *apiClient
	approveRate float64
	infoRate    float64
	rng         *rand.Rand
}

// coveredParts returns, per category of the vehicle model's active policy,
// the parts currently AVAILABLE in it.
func (s *simulator) coveredParts(modelID string) (map[primitive.ObjectID][]models.Part, error) {
	var policies []models.WarrantyPolicy
	if err := s.sc.do(http.MethodGet, "/api/policies?model_id="+url.QueryEscape(modelID), nil, &policies); err != nil {
		return nil, err
	}
	out := make(map[primitive.ObjectID][]models.Part)
	for _, p := range policies {
		if p.Status != models.PolicyActive {
			continue
		}
		for _, cp := range p.CoveredParts {
			q := url.Values{"category_id": {cp.PartCategoryID.Hex()}, "status": {string(models.PartAvailable)}}
			var parts []models.Part
			if err := s.sc.do(http.MethodGet, "/api/parts?"+q.Encode(), nil, &parts); err != nil {
				return nil, err
			}
			if len(parts) > 0 {
				out[cp.PartCategoryID] = parts
			}
		}
	}
	if len(out) == 0 {
		return nil, errNoCoverage
	}
	return out, nil
}

// randomItems builds between one and three defect lines from covered parts.
func (s *simulator) randomItems(covered map[primitive.ObjectID][]models.Part) []handlers.AddItemRequest {
	categories := make([]primitive.ObjectID, 0, len(covered))
	for id := range covered {
		categories = append(categories, id)
	}
	n := 1 + s.rng.Intn(3)
	items := make([]handlers.AddItemRequest, 0, n)
	for i := 0; i < n; i++ {
		category := categories[s.rng.Intn(len(categories))]
		parts := covered[category]
		items = append(items, handlers.AddItemRequest{
			PartCategoryID:   category,
			FaultyPartID:     parts[s.rng.Intn(len(parts))].ID,
			IssueDescription: issues[s.rng.Intn(len(issues))],
			Type:             itemTypes[s.rng.Intn(len(itemTypes))],
			Cost:             randomCost(s.rng),
		})
	}
	return items
}

func randomCost(rng *rand.Rand) models.Money {
	cents := 2000 + rng.Int63n(250000)
	return models.Money{Decimal: decimal.New(cents, -2)}
}

// runClaim walks one claim for vehicle from creation to completion.
func (s *simulator) runClaim(v fixture.Vehicle) (*models.Claim, error) {
	covered, err := s.coveredParts(v.ModelID)
	if err != nil {
		return nil, err
	}
	customerID, _ := fixture.ParseID("customer id", v.CustomerID)
	vehicleID, _ := fixture.ParseID("vehicle id", v.ID)

	var claim models.Claim
	err = s.sc.do(http.MethodPost, "/api/claims", handlers.CreateClaimRequest{
		CustomerID:  customerID,
		VehicleID:   vehicleID,
		Description: fmt.Sprintf("Warranty visit for %s", v.VIN),
	}, &claim)
	if err != nil {
		return nil, fmt.Errorf("create claim: %w", err)
	}
	base := "/api/claims/" + claim.ID.Hex()

	var itemIDs []primitive.ObjectID
	for _, item := range s.randomItems(covered) {
		var added models.ClaimItem
		if err := s.sc.do(http.MethodPost, base+"/items", item, &added); err != nil {
			return nil, fmt.Errorf("add item: %w", err)
		}
		itemIDs = append(itemIDs, added.ID)
	}

	if err := s.sc.do(http.MethodPost, base+"/submit", nil, nil); err != nil {
		return nil, fmt.Errorf("submit: %w", err)
	}
	if err := s.evm.do(http.MethodPost, base+"/start-review", nil, nil); err != nil {
		return nil, fmt.Errorf("start review: %w", err)
	}
	if s.rng.Float64() < s.infoRate {
		steps := []struct {
			client *apiClient
			op     string
		}{{s.evm, "request-info"}, {s.sc, "submit"}, {s.evm, "start-review"}}
		for _, step := range steps {
			if err := step.client.do(http.MethodPost, base+"/"+step.op, nil, nil); err != nil {
				return nil, fmt.Errorf("%s: %w", step.op, err)
			}
		}
	}

	for _, id := range itemIDs {
		decision := "reject"
		if s.rng.Float64() < s.approveRate {
			decision = "approve"
		}
		if err := s.evm.do(http.MethodPost, base+"/items/"+id.Hex()+"/"+decision, nil, nil); err != nil {
			return nil, fmt.Errorf("%s item: %w", decision, err)
		}
	}

	if err := s.evm.do(http.MethodPost, base+"/complete", nil, &claim); err != nil {
		return nil, fmt.Errorf("complete: %w", err)
	}
	return &claim, nil
}

func simulateVehicle(s *simulator, v fixture.Vehicle, interval time.Duration) {
	tick := time.NewTicker(interval)
	defer tick.Stop()
	for range tick.C {
		claim, err := s.runClaim(v)
		if errors.Is(err, errNoCoverage) {
			log.WithField("vin", v.VIN).Debug("Nothing to claim for vehicle")
			continue
		}
		if err != nil {
			log.WithError(err).WithField("vin", v.VIN).Error("Claim simulation failed")
			continue
		}
		log.WithFields(log.Fields{
			"vin":          v.VIN,
			"claim_number": claim.ClaimNumber,
			"items":        len(claim.Items),
			"disposition":  claim.Disposition,
			"total_cost":   claim.TotalCost.String(),
		}).Info("Completed claim")
	}
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 && f <= 1 {
			return f
		}
	}
	return def
}

// firstUser returns the credentials of the first fixture user with role.
func firstUser(f *fixture.Fixture, role models.Role) (fixture.User, error) {
	users := f.UsersWithRole(role)
	if len(users) == 0 {
		return fixture.User{}, fmt.Errorf("fixture has no %s user", role)
	}
	return users[0], nil
}

func main() {
	apiURL := os.Getenv("API_BASE_URL")
	if apiURL == "" {
		apiURL = "http://localhost:8080"
	}

	fixturePath := os.Getenv("SEED_FILE")
	if fixturePath == "" {
		fixturePath = "cmd/seed/fixture.yaml"
	}

	interval := 5 * time.Second
	if v := os.Getenv("SIM_TICK_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 {
			interval = time.Duration(n) * time.Second
		}
	}

	f, err := fixture.LoadFile(fixturePath)
	if err != nil {
		log.WithError(err).Fatal("Failed to read fixture")
	}
	if len(f.Vehicles) == 0 {
		log.Fatal("Fixture has no vehicles. Exiting.")
	}

	sim := &simulator{
		approveRate: envFloat("SIM_APPROVE_RATE", 0.7),
		infoRate:    envFloat("SIM_INFO_RATE", 0.2),
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, side := range []struct {
		role   models.Role
		client **apiClient
	}{{models.RoleSCStaff, &sim.sc}, {models.RoleEVMStaff, &sim.evm}} {
		user, err := firstUser(f, side.role)
		if err != nil {
			log.WithError(err).Fatal("Missing simulator credentials")
		}
		c, err := login(apiURL, user.Username, user.Password)
		if err != nil {
			log.WithError(err).Fatal("Failed to log in. Ensure the fixture is seeded and the API is reachable.")
		}
		*side.client = c
	}

	log.WithFields(log.Fields{
		"vehicles":     len(f.Vehicles),
		"api_url":      apiURL,
		"interval":     interval,
		"approve_rate": sim.approveRate,
		"info_rate":    sim.infoRate,
	}).Info("Starting claim simulation")

	for _, v := range f.Vehicles {
		vehicleSim := *sim
		vehicleSim.rng = rand.New(rand.NewSource(sim.rng.Int63()))
		go simulateVehicle(&vehicleSim, v, interval)
	}

	select {} // Block forever
}
