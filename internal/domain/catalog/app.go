// Package catalog describes the downstream applications the portal links to.
package catalog

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
)

// ErrAppNotFound is returned when an app ID is unknown.
var ErrAppNotFound = errors.New("app not found")

// ErrAppForbidden is returned when the user holds none of an app's roles.
var ErrAppForbidden = errors.New("app not available for user roles")

// App is a role-gated downstream application shown on the dashboard.
type App struct {
	ID              string   `json:"id" yaml:"id"`
	Name            string   `json:"name" yaml:"name"`
	Description     string   `json:"description,omitempty" yaml:"description"`
	LongDescription string   `json:"longDescription,omitempty" yaml:"long_description"`
	URL             string   `json:"url" yaml:"url"`
	LogoURL         string   `json:"logoUrl,omitempty" yaml:"logo_url"`
	Roles           []string `json:"roles" yaml:"roles"`
	Category        string   `json:"category,omitempty" yaml:"category"`
	IsNew           bool     `json:"isNew,omitempty" yaml:"is_new"`
	IsFeatured      bool     `json:"isFeatured,omitempty" yaml:"is_featured"`
	BackgroundColor string   `json:"backgroundColor,omitempty" yaml:"background_color"`
}

// VisibleTo reports whether a user holding userRoles may see the app.
// An app with no required roles is hidden.
func (a App) VisibleTo(userRoles []string) bool {
	for _, r := range a.Roles {
		if slices.Contains(userRoles, r) {
			return true
		}
	}
	return false
}

// Validate checks that the descriptor can be rendered and launched.
func (a App) Validate() error {
	if a.ID == "" {
		return errors.New("app id is required")
	}
	if a.Name == "" {
		return fmt.Errorf("app %s: name is required", a.ID)
	}
	u, err := url.Parse(a.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("app %s: url must be absolute: %q", a.ID, a.URL)
	}
	if len(a.Roles) == 0 {
		return fmt.Errorf("app %s: at least one role is required", a.ID)
	}
	return nil
}

// Filter returns the apps visible to userRoles, preserving order.
func Filter(apps []App, userRoles []string) []App {
	out := make([]App, 0, len(apps))
	for _, a := range apps {
		if a.VisibleTo(userRoles) {
			out = append(out, a)
		}
	}
	return out
}
