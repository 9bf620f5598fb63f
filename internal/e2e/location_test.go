package e2e

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsLocationURL(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"http://localhost:8080/login/location", true},
		{"http://localhost:8080/login/location/", true},
		{"http://localhost:8080/login/location?next=%2Fspa%2Fhome", true},
		{"https://emr.example.org/openmrs/spa/login/location", true},
		{"http://localhost:8080/login", false},
		{"http://localhost:8080/login/locations", false},
		{"http://localhost:8080/spa/home?from=login/location", false},
		{"about:blank", false},
		{"://bad", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsLocationURL(tt.url), tt.url)
	}
}
