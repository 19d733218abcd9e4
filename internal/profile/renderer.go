package profile

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charlesng35/ovpnhub/internal/models"
	"github.com/charlesng35/ovpnhub/internal/services"
)

// Config holds the fixed client directives shared by every profile.
type Config struct {
	RemoteHost string
	RemotePort int
	Protocol   string
	Cipher     string
	AuthDigest string
}

func (c Config) withDefaults() Config {
	if c.RemotePort <= 0 {
		c.RemotePort = 1194
	}
	if strings.TrimSpace(c.Protocol) == "" {
		c.Protocol = "udp"
	}
	if strings.TrimSpace(c.Cipher) == "" {
		c.Cipher = "AES-256-GCM"
	}
	if strings.TrimSpace(c.AuthDigest) == "" {
		c.AuthDigest = "SHA256"
	}
	return c
}

// UserReader loads the profile owner.
type UserReader interface {
	Get(ctx context.Context, id uint) (*models.User, error)
}

// DeviceReader picks the device whose policy represents the user.
type DeviceReader interface {
	PrimaryDevice(ctx context.Context, userID uint) (*models.Device, error)
}

// PolicyResolver resolves effective policies.
type PolicyResolver interface {
	ResolveEffectivePolicy(ctx context.Context, deviceID uint) (*services.EffectivePolicy, error)
	ResolveUserPolicy(ctx context.Context, userID uint) (*services.EffectivePolicy, error)
}

// NetworkLister lists the user's routed networks.
type NetworkLister interface {
	ListEnabled(ctx context.Context, userID uint) ([]models.LanNetwork, error)
}

// Renderer produces OpenVPN client configuration documents from current state.
type Renderer struct {
	cfg         Config
	users       UserReader
	devices     DeviceReader
	policies    PolicyResolver
	networks    NetworkLister
	credentials CredentialSource
}

// NewRenderer wires a renderer. A nil credential source renders no inline blocks.
func NewRenderer(cfg Config, users UserReader, devices DeviceReader, policies PolicyResolver, networks NetworkLister, credentials CredentialSource) (*Renderer, error) {
	if users == nil || devices == nil || policies == nil || networks == nil {
		return nil, errors.New("profile: user, device, policy and network stores are required")
	}
	if strings.TrimSpace(cfg.RemoteHost) == "" {
		return nil, errors.New("profile: remote host is required")
	}
	if credentials == nil {
		credentials = StaticCredentials{}
	}
	return &Renderer{
		cfg:         cfg.withDefaults(),
		users:       users,
		devices:     devices,
		policies:    policies,
		networks:    networks,
		credentials: credentials,
	}, nil
}

// Render builds the profile for a user. Output depends only on stored state, so two
// renders without intervening writes are byte-identical.
func (r *Renderer) Render(ctx context.Context, userID uint) (string, error) {
	doc, err := r.RenderDocument(ctx, userID)
	if err != nil {
		return "", err
	}
	return doc.Body, nil
}

// Document is a rendered profile together with its download name. Both come
// from the same user read.
type Document struct {
	FileName string
	Body     string
}

// RenderDocument renders the profile and names it after the user it was built for.
func (r *Renderer) RenderDocument(ctx context.Context, userID uint) (Document, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	user, err := r.users.Get(ctx, userID)
	if err != nil {
		return Document{}, err
	}

	device, policy, err := r.resolvePolicy(ctx, user.ID)
	if err != nil {
		return Document{}, err
	}

	networks, err := r.networks.ListEnabled(ctx, user.ID)
	if err != nil {
		return Document{}, fmt.Errorf("profile: list networks: %w", err)
	}

	creds, err := r.credentials.Credentials(ctx, *user)
	if err != nil {
		return Document{}, err
	}

	var b strings.Builder
	r.writeDirectives(&b)
	writeIdentity(&b, user, device)
	writePolicy(&b, policy)
	writeRoutes(&b, networks)
	writeBlock(&b, "ca", creds.CA)
	writeBlock(&b, "cert", creds.Cert)
	writeBlock(&b, "key", creds.Key)
	writeBlock(&b, "tls-crypt", creds.TLSCrypt)
	return Document{FileName: FileName(user.Username), Body: b.String()}, nil
}

func (r *Renderer) resolvePolicy(ctx context.Context, userID uint) (*models.Device, *services.EffectivePolicy, error) {
	device, err := r.devices.PrimaryDevice(ctx, userID)
	switch {
	case errors.Is(err, services.ErrDeviceNotFound):
		policy, err := r.policies.ResolveUserPolicy(ctx, userID)
		if err != nil {
			return nil, nil, fmt.Errorf("profile: resolve user policy: %w", err)
		}
		return nil, policy, nil
	case err != nil:
		return nil, nil, fmt.Errorf("profile: load primary device: %w", err)
	}

	policy, err := r.policies.ResolveEffectivePolicy(ctx, device.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("profile: resolve device policy: %w", err)
	}
	return device, policy, nil
}

func (r *Renderer) writeDirectives(b *strings.Builder) {
	line(b, "client")
	line(b, "dev tun")
	line(b, "proto "+Sanitize(r.cfg.Protocol))
	line(b, "remote "+Sanitize(r.cfg.RemoteHost)+" "+strconv.Itoa(r.cfg.RemotePort))
	line(b, "resolv-retry infinite")
	line(b, "nobind")
	line(b, "persist-key")
	line(b, "persist-tun")
	line(b, "remote-cert-tls server")
	line(b, "cipher "+Sanitize(r.cfg.Cipher))
	line(b, "auth "+Sanitize(r.cfg.AuthDigest))
	line(b, "verb 3")
}

func writeIdentity(b *strings.Builder, user *models.User, device *models.Device) {
	line(b, "")
	line(b, "# user: "+Sanitize(user.Username))
	if name := Sanitize(user.DisplayName); name != "" {
		line(b, "# name: "+name)
	}
	if email := Sanitize(user.Email); email != "" {
		line(b, "# email: "+email)
	}
	if device != nil {
		line(b, "# device: "+Sanitize(device.Name))
	}
}

func writePolicy(b *strings.Builder, policy *services.EffectivePolicy) {
	if policy == nil {
		line(b, "# qos-policy: none")
		return
	}
	line(b, "# qos-policy: "+Sanitize(policy.Policy.Name))
	line(b, "# qos-bandwidth-kbps: "+strconv.Itoa(policy.Policy.BandwidthLimit))
	line(b, "# qos-priority: "+Sanitize(string(policy.Policy.Priority)))
	line(b, "# qos-source: "+policy.Source)
	if description := Sanitize(policy.Policy.Description); description != "" {
		line(b, "# qos-description: "+description)
	}
}

func writeRoutes(b *strings.Builder, networks []models.LanNetwork) {
	if len(networks) == 0 {
		return
	}
	line(b, "")
	for _, network := range networks {
		if description := Sanitize(network.Description); description != "" {
			line(b, "# "+description)
		}
		line(b, "route "+Sanitize(network.NetworkAddress)+" "+Sanitize(network.SubnetMask))
	}
}

func writeBlock(b *strings.Builder, tag, body string) {
	if strings.TrimSpace(body) == "" {
		return
	}
	line(b, "")
	line(b, "<"+tag+">")
	b.WriteString(body)
	if !strings.HasSuffix(body, "\n") {
		b.WriteByte('\n')
	}
	line(b, "</"+tag+">")
}

func line(b *strings.Builder, text string) {
	b.WriteString(text)
	b.WriteByte('\n')
}
