package app

import (
	"strings"

	"github.com/charlesng35/ovpnhub/internal/profile"
)

// RendererConfig converts the profile section into renderer parameters.
func (c ProfileConfig) RendererConfig() profile.Config {
	return profile.Config{
		RemoteHost: strings.TrimSpace(c.RemoteHost),
		RemotePort: c.RemotePort,
		Protocol:   strings.TrimSpace(c.Protocol),
		Cipher:     strings.TrimSpace(c.Cipher),
		AuthDigest: strings.TrimSpace(c.AuthDigest),
	}
}
