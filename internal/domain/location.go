package domain

import (
	"encoding/json"
	"fmt"
)

// LocationMode tags which variant a Location holds.
type LocationMode string

const (
	LocationOnline LocationMode = "online"
	LocationOnsite LocationMode = "onsite"
)

// Platforms accepted for online locations.
var Platforms = []string{"Zoom", "Google Meet", "Microsoft Teams", "Other"}

// OnlineLocation is a meeting held on a conferencing platform.
type OnlineLocation struct {
	Platform string
	Link     string
}

// OnsiteLocation is a meeting at a physical address.
type OnsiteLocation struct {
	Address string
}

// Location is a tagged variant: exactly one of Online or Onsite is set,
// matching Mode.
type Location struct {
	Mode   LocationMode
	Online *OnlineLocation
	Onsite *OnsiteLocation
}

// NewOnlineLocation builds an online location. An empty platform means "Other".
func NewOnlineLocation(platform, link string) *Location {
	if platform == "" {
		platform = "Other"
	}
	return &Location{Mode: LocationOnline, Online: &OnlineLocation{Platform: platform, Link: link}}
}

// NewOnsiteLocation builds an onsite location.
func NewOnsiteLocation(address string) *Location {
	return &Location{Mode: LocationOnsite, Onsite: &OnsiteLocation{Address: address}}
}

// Validate checks that the variant matches its mode and carries its required fields.
func (l *Location) Validate() error {
	switch l.Mode {
	case LocationOnline:
		if l.Online == nil || l.Onsite != nil {
			return fmt.Errorf("%w: online location requires online details only", ErrInvalidInput)
		}
		if l.Online.Link == "" {
			return fmt.Errorf("%w: online location requires a link", ErrInvalidInput)
		}
		if !validPlatform(l.Online.Platform) {
			return fmt.Errorf("%w: unknown platform %q", ErrInvalidInput, l.Online.Platform)
		}
	case LocationOnsite:
		if l.Onsite == nil || l.Online != nil {
			return fmt.Errorf("%w: onsite location requires onsite details only", ErrInvalidInput)
		}
		if l.Onsite.Address == "" {
			return fmt.Errorf("%w: onsite location requires an address", ErrInvalidInput)
		}
	default:
		return fmt.Errorf("%w: location type must be 'online' or 'onsite'", ErrInvalidInput)
	}
	return nil
}

// String renders the location as a single line, for calendar exports.
func (l *Location) String() string {
	switch {
	case l.Online != nil:
		return l.Online.Platform + ": " + l.Online.Link
	case l.Onsite != nil:
		return l.Onsite.Address
	}
	return ""
}

func validPlatform(p string) bool {
	for _, known := range Platforms {
		if p == known {
			return true
		}
	}
	return false
}

// locationJSON is the flat wire shape shared by the API and the stores.
type locationJSON struct {
	Type     LocationMode `json:"type"`
	Platform string       `json:"platform,omitempty"`
	Link     string       `json:"link,omitempty"`
	Address  string       `json:"address,omitempty"`
}

func (l Location) MarshalJSON() ([]byte, error) {
	out := locationJSON{Type: l.Mode}
	if l.Online != nil {
		out.Platform = l.Online.Platform
		out.Link = l.Online.Link
	}
	if l.Onsite != nil {
		out.Address = l.Onsite.Address
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the flat shape into the variant named by "type".
// Fields belonging to the other variant are ignored.
func (l *Location) UnmarshalJSON(data []byte) error {
	var in locationJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	switch in.Type {
	case LocationOnline:
		*l = *NewOnlineLocation(in.Platform, in.Link)
	case LocationOnsite:
		*l = *NewOnsiteLocation(in.Address)
	default:
		*l = Location{Mode: in.Type}
	}
	return nil
}
