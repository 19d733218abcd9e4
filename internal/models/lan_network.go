package models

import (
	"gorm.io/gorm"

	"github.com/charlesng35/ovpnhub/pkg/cidr"
)

// LanNetwork is a user-declared network routed through the tunnel. NetworkAddress and
// SubnetMask are derived from CIDR on every save and never edited directly.
type LanNetwork struct {
	BaseModel

	UserID         uint   `gorm:"not null;uniqueIndex:idx_lan_networks_owner_cidr,priority:1" json:"user_id"`
	User           *User  `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	CIDR           string `gorm:"column:cidr;type:varchar(18);not null;uniqueIndex:idx_lan_networks_owner_cidr,priority:2" json:"cidr"`
	NetworkAddress string `gorm:"type:varchar(15);not null" json:"network_address"`
	SubnetMask     string `gorm:"type:varchar(15);not null" json:"subnet_mask"`
	Description    string `gorm:"type:varchar(255)" json:"description"`
	Enabled        bool   `gorm:"not null" json:"enabled"`
}

// BeforeSave canonicalises CIDR and recomputes the derived address fields.
func (n *LanNetwork) BeforeSave(tx *gorm.DB) error {
	parsed, err := cidr.Parse(n.CIDR)
	if err != nil {
		return err
	}
	n.CIDR = parsed.CIDR
	n.NetworkAddress = parsed.Address
	n.SubnetMask = parsed.Mask
	return nil
}
