package recon

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeoLocator_Locate(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"status":"success","country":"United States","countryCode":"US","regionName":"Virginia","city":"Ashburn","isp":"Google LLC","org":"Google Public DNS","as":"AS15169 Google LLC"}`))
	}))
	defer srv.Close()

	geo := &GeoLocator{BaseURL: srv.URL + "/json/"}
	info, err := geo.Locate(context.Background(), "8.8.8.8")
	require.NoError(t, err)
	assert.Equal(t, "/json/8.8.8.8", gotPath)

	lines := GeoLines(info, "dns.google")
	assert.Equal(t, []string{
		"🇺🇸 Country: United States (US)",
		"City: Ashburn, Virginia",
		"ISP: Google LLC",
		"Organization: Google Public DNS",
		"ASN: AS15169 Google LLC",
		"Reverse DNS: dns.google",
	}, lines)
}

func TestGeoLines_MissingFields(t *testing.T) {
	lines := GeoLines(&GeoInfo{Status: "success", CountryCode: "DE"}, "")

	assert.Equal(t, "🇩🇪 Country: Germany (DE)", lines[0])
	assert.Equal(t, "City: N/A, N/A", lines[1])
	assert.Equal(t, "ISP: N/A", lines[2])
	assert.Equal(t, "Reverse DNS: N/A", lines[5])
}

func TestGeoLines_Fail(t *testing.T) {
	lines := GeoLines(&GeoInfo{Status: "fail", Message: "private range"}, "")
	assert.Equal(t, []string{"No geolocation data: private range"}, lines)
}

func TestGeoLocator_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := (&GeoLocator{BaseURL: srv.URL + "/"}).Locate(context.Background(), "1.1.1.1")
	assert.Error(t, err)
}

func TestFlagEmoji(t *testing.T) {
	assert.Equal(t, "🇨🇱", FlagEmoji("cl"))
	assert.Equal(t, "🇮🇸", FlagEmoji("IS"))
	assert.Equal(t, "🌐", FlagEmoji(""))
	assert.Equal(t, "🌐", FlagEmoji("USA"))
	assert.Equal(t, "🌐", FlagEmoji("1A"))
}

func TestCountryName(t *testing.T) {
	assert.Equal(t, "Japan", CountryName("JP"))
	assert.Equal(t, "", CountryName("not-a-region"))
}
