package models

import (
	"time"
)

type Account struct {
	ID         int64   `json:"id"`
	Username   string  `json:"username"`
	Email      *string `json:"email"`
	Avatar     *string `json:"avatar"`
	Admin      int     `json:"admin"`
	LegacyCoin int64   `json:"legacycoin"`
}

type Character struct {
	ID          int64   `json:"id"`
	Name        *string `json:"charactername"`
	AccountID   int64   `json:"account"`
	Money       int64   `json:"money"`
	BankMoney   int64   `json:"bankmoney"`
	HoursPlayed int     `json:"hoursplayed"`
}

// DiscountCode is a single-use percent-off code owned by one account.
type DiscountCode struct {
	ID        int64      `json:"-"`
	AccountID int64      `json:"-"`
	Code      string     `json:"code"`
	Percent   int        `json:"percent"`
	Used      bool       `json:"used"`
	CreatedAt time.Time  `json:"createdAt"`
	UsedAt    *time.Time `json:"usedAt"`
	ExpiresAt *time.Time `json:"expiresAt"`
}

// Usable reports whether the code can still be redeemed at now.
func (c *DiscountCode) Usable(now time.Time) bool {
	if c.Used {
		return false
	}
	return c.ExpiresAt == nil || !c.ExpiresAt.Before(now)
}

type DeliveryStatus string

const (
	DeliveryPending DeliveryStatus = "pending"
)

type DeliveryEntry struct {
	ID          int64          `json:"id"`
	AccountID   int64          `json:"accountId"`
	CharacterID int64          `json:"characterId"`
	ItemID      int            `json:"itemId"`
	ItemValue   string         `json:"itemValue"`
	Status      DeliveryStatus `json:"status"`
	CreatedAt   time.Time      `json:"createdAt"`
}

type SpinRecord struct {
	ID          int64     `json:"id"`
	AccountID   int64     `json:"accountId"`
	Outcome     string    `json:"outcome"`
	RewardValue *int64    `json:"rewardValue"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Ban struct {
	ID        int64      `json:"id"`
	MTASerial *string    `json:"mta_serial"`
	IP        *string    `json:"ip"`
	AccountID *int64     `json:"account"`
	AdminID   *int64     `json:"admin"`
	Reason    string     `json:"reason"`
	Date      time.Time  `json:"date"`
	Until     *time.Time `json:"until"`
}

type ServerStats struct {
	TotalAccounts   int64 `json:"totalAccounts"`
	TotalCharacters int64 `json:"totalCharacters"`
	ActiveBans      int64 `json:"activeBans"`
}
