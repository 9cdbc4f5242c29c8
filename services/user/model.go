package user

import (
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
)

// User is the app-scoped identity an order references. The external auth
// edge owns credentials; this row only anchors (app, user) to a wallet.
type User struct {
	ID        string    `gorm:"column:id;primaryKey;type:varchar(40)"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`

	AppID  string `gorm:"column:app_id;uniqueIndex:idx_users_app_user;not null"`
	UserID string `gorm:"column:user_id;uniqueIndex:idx_users_app_user;not null"`

	DeviceID      string `gorm:"column:device_id;type:varchar(80)"`
	WalletAddress string `gorm:"column:wallet_address;type:varchar(80)"`
}

func (User) TableName() string { return "users" }

func NewUserID(node *snowflake.Node) string {
	return fmt.Sprintf("user_%s", node.Generate().String())
}
