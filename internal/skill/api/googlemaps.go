// Package api provides an implementation for interacting with the Google Maps
// web services. It supports transit directions, place search, geocoding and
// timezone resolution.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/DenisKhanov/CommuteBot/internal/skill/models"
	"github.com/sirupsen/logrus"
)

// Maps defines the interface for Google Maps API operations.
type Maps interface {
	GetNextTransitToDestination(transitType, originAddress, destinationAddress string) ([]models.TransitSuggestion, error) // Ranked transit routes between two addresses.
	GetAddressOfPlace(placeName string) (string, error)                                                                   // Resolves a spoken place description to a postal address.
	GetTimezoneFromAddress(address string) (string, error)                                                                // IANA timezone identifier of an address.
}

// Transit type names that mean "any vehicle"; routes are not filtered by
// vehicle kind for these.
var genericTransitTypes = []string{"commute", "transit"}

// Response statuses of the Google Maps web services.
const (
	statusOK          = "OK"
	statusZeroResults = "ZERO_RESULTS"
)

// GoogleMapsAPI manages interactions with the Google Maps Directions, Places,
// Geocoding and Time Zone web services.
type GoogleMapsAPI struct {
	apiKey  string       // Authentication key appended to every request.
	baseURL string       // Service root, https://maps.googleapis.com/maps/api in production.
	client  *http.Client // HTTP client
}

// directionsResponse is the subset of the Directions API response the skill
// consumes.
type directionsResponse struct {
	Status string            `json:"status"`
	Routes []directionsRoute `json:"routes"`
}

type directionsRoute struct {
	Legs []directionsLeg `json:"legs"`
}

type directionsLeg struct {
	Duration      durationValue    `json:"duration"`
	DepartureTime *timeValue       `json:"departure_time"`
	ArrivalTime   *timeValue       `json:"arrival_time"`
	Steps         []directionsStep `json:"steps"`
}

type directionsStep struct {
	TravelMode       string          `json:"travel_mode"` // "WALKING" or "TRANSIT"
	Duration         durationValue   `json:"duration"`
	HTMLInstructions string          `json:"html_instructions"`
	TransitDetails   *transitDetails `json:"transit_details,omitempty"`
}

type transitDetails struct {
	DepartureTime *timeValue  `json:"departure_time"`
	Line          transitLine `json:"line"`
}

type transitLine struct {
	ShortName string         `json:"short_name"`
	Vehicle   transitVehicle `json:"vehicle"`
}

type transitVehicle struct {
	Name string `json:"name"` // Vehicle kind, e.g. "Bus"
}

// durationValue is a duration as seconds plus display text.
type durationValue struct {
	Value int64  `json:"value"`
	Text  string `json:"text"`
}

// timeValue is a point in time as a unix timestamp plus display text.
type timeValue struct {
	Value int64  `json:"value"`
	Text  string `json:"text"`
}

// placesResponse is the subset of the Places text search response the skill
// consumes.
type placesResponse struct {
	Status  string         `json:"status"`
	Results []placesResult `json:"results"`
}

type placesResult struct {
	FormattedAddress string `json:"formatted_address"`
}

// geocodeResponse is the subset of the Geocoding API response the skill
// consumes.
type geocodeResponse struct {
	Status  string          `json:"status"`
	Results []geocodeResult `json:"results"`
}

type geocodeResult struct {
	Geometry struct {
		Location latLng `json:"location"`
	} `json:"geometry"`
}

type latLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// timezoneResponse is the subset of the Time Zone API response the skill
// consumes.
type timezoneResponse struct {
	Status     string `json:"status"`
	TimeZoneID string `json:"timeZoneId"`
}

// NewGoogleMapsAPI creates a new instance of GoogleMapsAPI.
// Arguments:
//   - baseURL: root URL of the Google Maps web services.
//   - apiKey: authentication key for API requests.
//
// Returns a pointer to a GoogleMapsAPI.
func NewGoogleMapsAPI(baseURL, apiKey string) *GoogleMapsAPI {
	return &GoogleMapsAPI{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// GetNextTransitToDestination returns the ranked transit options between two
// addresses, departing now. When transitType names a concrete vehicle the
// routes are filtered down to the ones using that vehicle; the generic types
// "commute" and "transit" keep every route. Routes the provider describes
// incompletely are dropped.
// Arguments:
//   - transitType: requested vehicle kind, e.g. "bus".
//   - originAddress: resolved postal address of the origin.
//   - destinationAddress: resolved postal address of the destination.
//
// Returns the usable suggestions, possibly empty, or an error if the request fails.
func (g *GoogleMapsAPI) GetNextTransitToDestination(transitType, originAddress, destinationAddress string) ([]models.TransitSuggestion, error) {
	query := url.Values{}
	query.Set("origin", originAddress)
	query.Set("destination", destinationAddress)
	query.Set("mode", "transit")
	query.Set("alternatives", "true")
	query.Set("departure_time", "now")

	var response directionsResponse
	if err := g.getJSON("/directions/json", query, &response); err != nil {
		logrus.WithError(err).Error("Directions request failed")
		return nil, fmt.Errorf("directions request failed: %w", err)
	}

	if response.Status == statusZeroResults {
		logrus.Infof("No transit routes between %q and %q", originAddress, destinationAddress)
		return nil, nil
	}
	if response.Status != statusOK {
		err := fmt.Errorf("unexpected directions status: %s", response.Status)
		logrus.WithError(err).Error("Directions request rejected")
		return nil, err
	}

	generic := isGenericTransitType(transitType)
	suggestions := make([]models.TransitSuggestion, 0, len(response.Routes))

	for _, route := range response.Routes {
		if !generic && !routeUsesTransitType(route, transitType) {
			continue
		}
		suggestion, err := routeToSuggestion(route)
		if err != nil {
			logrus.WithError(err).Warn("Dropping route the directions response describes incompletely")
			continue
		}
		suggestions = append(suggestions, *suggestion)
	}
	return suggestions, nil
}

// GetAddressOfPlace resolves a spoken place description to a postal address
// through the Places text search.
// Arguments:
//   - placeName: free-form place description, e.g. a spoken street address.
//
// Returns the formatted address of the best match or an error if none exists.
func (g *GoogleMapsAPI) GetAddressOfPlace(placeName string) (string, error) {
	query := url.Values{}
	query.Set("query", placeName)

	var response placesResponse
	if err := g.getJSON("/place/textsearch/json", query, &response); err != nil {
		logrus.WithError(err).Error("Place search request failed")
		return "", fmt.Errorf("place search failed: %w", err)
	}

	if response.Status != statusOK || len(response.Results) == 0 {
		err := fmt.Errorf("no place found for %q, status: %s", placeName, response.Status)
		logrus.WithError(err).Warn("Place search returned no usable result")
		return "", err
	}

	address := response.Results[0].FormattedAddress
	if address == "" {
		err := fmt.Errorf("place found for %q has no formatted address", placeName)
		logrus.WithError(err).Warn("Place search returned no usable result")
		return "", err
	}
	logrus.Infof("Resolved place %q to address %q", placeName, address)
	return address, nil
}

// GetTimezoneFromAddress geocodes the address and asks the Time Zone service
// for the IANA timezone identifier of its location.
// Arguments:
//   - address: resolved postal address.
//
// Returns the timezone identifier or an error if either lookup fails.
func (g *GoogleMapsAPI) GetTimezoneFromAddress(address string) (string, error) {
	query := url.Values{}
	query.Set("address", address)

	var geocoded geocodeResponse
	if err := g.getJSON("/geocode/json", query, &geocoded); err != nil {
		logrus.WithError(err).Error("Geocoding request failed")
		return "", fmt.Errorf("geocoding failed: %w", err)
	}
	if geocoded.Status != statusOK || len(geocoded.Results) == 0 {
		err := fmt.Errorf("no geocoding result for %q, status: %s", address, geocoded.Status)
		logrus.WithError(err).Warn("Geocoding returned no usable result")
		return "", err
	}

	location := geocoded.Results[0].Geometry.Location
	query = url.Values{}
	query.Set("location", fmt.Sprintf("%f,%f", location.Lat, location.Lng))
	query.Set("timestamp", strconv.FormatInt(time.Now().Unix(), 10))

	var timezone timezoneResponse
	if err := g.getJSON("/timezone/json", query, &timezone); err != nil {
		logrus.WithError(err).Error("Timezone request failed")
		return "", fmt.Errorf("timezone lookup failed: %w", err)
	}
	if timezone.Status != statusOK || timezone.TimeZoneID == "" {
		err := fmt.Errorf("no timezone for %q, status: %s", address, timezone.Status)
		logrus.WithError(err).Warn("Timezone lookup returned no usable result")
		return "", err
	}
	logrus.Infof("Resolved timezone of %q to %s", address, timezone.TimeZoneID)
	return timezone.TimeZoneID, nil
}

// getJSON performs one GET against a Google Maps web service and decodes the
// JSON body into out.
func (g *GoogleMapsAPI) getJSON(path string, query url.Values, out any) error {
	query.Set("key", g.apiKey)
	requestURL := g.baseURL + path + "?" + query.Encode()

	ctx, cancel := context.WithTimeout(context.Background(), g.client.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	res, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		if err = res.Body.Close(); err != nil {
			logrus.WithError(err).Errorf("Failed to close response body: %v", err)
		}
	}()

	if res.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(res.Body)
		return fmt.Errorf("unexpected status code: %d, body: %s", res.StatusCode, string(data))
	}

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if err = json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

// routeToSuggestion maps one directions route onto a transit suggestion. A
// route whose first step is a walk contributes the walking leg; the first
// transit step supplies the vehicle, line and departure details, and every
// later transit step counts as a switch.
func routeToSuggestion(route directionsRoute) (*models.TransitSuggestion, error) {
	if len(route.Legs) == 0 {
		return nil, fmt.Errorf("route has no legs")
	}
	leg := route.Legs[0]
	if len(leg.Steps) == 0 {
		return nil, fmt.Errorf("route leg has no steps")
	}

	suggestion := models.TransitSuggestion{
		TotalDuration: models.TransitDuration{
			Seconds: leg.Duration.Value,
			Text:    leg.Duration.Text,
		},
	}

	transitStep := leg.Steps[0]
	transitStepIndex := 0

	if len(leg.Steps) >= 2 && leg.Steps[0].TravelMode == "WALKING" {
		walkingStep := leg.Steps[0]
		suggestion.WalkingDuration = &models.TransitDuration{
			Seconds: walkingStep.Duration.Value,
			Text:    walkingStep.Duration.Text,
		}
		suggestion.WalkingInstruction = walkingStep.HTMLInstructions
		if leg.DepartureTime != nil {
			walkingStartTime := time.Unix(leg.DepartureTime.Value, 0).UTC()
			suggestion.WalkingStartTime = &walkingStartTime
		}
		transitStep = leg.Steps[1]
		transitStepIndex = 1
	}

	if transitStep.TravelMode != "TRANSIT" || transitStep.TransitDetails == nil {
		return nil, fmt.Errorf("route does not start with a usable transit step")
	}
	details := transitStep.TransitDetails
	if details.DepartureTime == nil || leg.ArrivalTime == nil {
		return nil, fmt.Errorf("transit step is missing departure or arrival time")
	}

	suggestion.TransitType = details.Line.Vehicle.Name
	suggestion.TransitID = details.Line.ShortName
	suggestion.TransitStartTime = time.Unix(details.DepartureTime.Value, 0).UTC()
	suggestion.ArrivalTime = time.Unix(leg.ArrivalTime.Value, 0).UTC()
	suggestion.TransitDuration = models.TransitDuration{
		Seconds: transitStep.Duration.Value,
		Text:    transitStep.Duration.Text,
	}
	suggestion.TransitInstruction = transitStep.HTMLInstructions

	for _, step := range leg.Steps[transitStepIndex+1:] {
		if step.TravelMode == "TRANSIT" {
			suggestion.NumOfSwitches++
		}
	}

	if err := suggestion.Validate(); err != nil {
		return nil, err
	}
	return &suggestion, nil
}

// routeUsesTransitType reports whether any transit step of the route uses the
// requested vehicle kind. The comparison is forgiving: "bus" matches the
// vehicle name "Bus" and the spoken phrase "city bus" matches too.
func routeUsesTransitType(route directionsRoute, transitType string) bool {
	requested := strings.ToLower(transitType)
	for _, leg := range route.Legs {
		for _, step := range leg.Steps {
			if step.TransitDetails == nil {
				continue
			}
			vehicleName := strings.ToLower(step.TransitDetails.Line.Vehicle.Name)
			if vehicleName != "" && strings.Contains(requested, vehicleName) {
				return true
			}
		}
	}
	return false
}

func isGenericTransitType(transitType string) bool {
	for _, generic := range genericTransitTypes {
		if transitType == generic {
			return true
		}
	}
	return false
}
