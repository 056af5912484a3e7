package main

import (
	"time"

	"gorm.io/gorm"
)

type config struct {
	HTTPListen  string
	DBPath      string
	BindServer  string
	TSIGKeyName string
	TSIGSecret  string
	AllowedZone string
	AdminAPIKey string
	InviteCode  string
	DefaultTTL  uint32
	DNSTimeout  time.Duration
	SessionTTL  time.Duration
	DebugLog    bool
}

// userModel is a tenant account. Its domain is a single label claimed
// directly under the allowed zone.
type userModel struct {
	ID             string    `gorm:"primaryKey;size:36"`
	Name           string    `gorm:"size:100;not null"`
	Email          string    `gorm:"size:64;not null;uniqueIndex"`
	PasswordDigest string    `gorm:"size:200;not null"`
	Domain         string    `gorm:"size:64;not null;uniqueIndex"`
	APIKey         string    `gorm:"size:200;not null;uniqueIndex"`
	CreatedAt      time.Time `gorm:"not null"`
	UpdatedAt      time.Time `gorm:"not null"`
}

// nodeModel is a user-owned sub-resource. Its domain is a single label
// under the owner's domain; the label is unique per owner, not globally.
type nodeModel struct {
	ID          string    `gorm:"primaryKey;size:36"`
	OwnerUserID string    `gorm:"size:36;not null;uniqueIndex:idx_nodes_owner_domain,priority:1"`
	Domain      string    `gorm:"size:64;not null;uniqueIndex:idx_nodes_owner_domain,priority:2"`
	APIKey      string    `gorm:"size:200;not null;uniqueIndex"`
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

type sessionModel struct {
	Token     string    `gorm:"primaryKey;size:64"`
	UserID    string    `gorm:"size:36;not null;index"`
	ExpiresAt time.Time `gorm:"not null"`
}

func (userModel) TableName() string {
	return "users"
}

func (nodeModel) TableName() string {
	return "nodes"
}

func (sessionModel) TableName() string {
	return "sessions"
}

type principalStore struct {
	db *gorm.DB
}

// record is a transient mutation intent, never persisted.
type record struct {
	RecordType  string `json:"record_type"`
	RecordValue string `json:"record_value"`
	TTL         int    `json:"ttl,omitempty"`
}

type recordSet struct {
	Before *record `json:"before,omitempty"`
	After  record  `json:"after"`
}

type createUserRequest struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Subdomain string `json:"subdomain"`
}

type updateUserRequest struct {
	Name         string `json:"name,omitempty"`
	Email        string `json:"email,omitempty"`
	Password     string `json:"password,omitempty"`
	RotateAPIKey bool   `json:"rotate_api_key,omitempty"`
}

type createNodeRequest struct {
	Subdomain   string `json:"subdomain"`
	OwnerUserID string `json:"owner_user_id,omitempty"`
}

type updateNodeRequest struct {
	Subdomain    string `json:"subdomain,omitempty"`
	RotateAPIKey bool   `json:"rotate_api_key,omitempty"`
}

type userResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Domain    string    `json:"domain"`
	APIKey    string    `json:"api_key"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type nodeResponse struct {
	ID          string    `json:"id"`
	OwnerUserID string    `json:"owner_user_id"`
	Domain      string    `json:"domain"`
	FQDN        string    `json:"fqdn"`
	APIKey      string    `json:"api_key"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type soaBlock struct {
	TTL     uint32 `json:"ttl"`
	Expire  uint32 `json:"expire"`
	Minimum uint32 `json:"minimum"`
	Refresh uint32 `json:"refresh"`
	Retry   uint32 `json:"retry"`
	RName   string `json:"rname"`
	MName   string `json:"mname"`
	Serial  uint32 `json:"serial"`
}

type zoneEntry struct {
	Response   string `json:"response"`
	RecordType string `json:"record_type"`
	TTL        uint32 `json:"ttl"`
}

type zoneDump struct {
	SOA     *soaBlock              `json:"SOA,omitempty"`
	Records map[string][]zoneEntry `json:"records"`
}

type server struct {
	cfg   config
	store *principalStore
	dns   *dnsManager
	start time.Time
}
