package events

import "time"

// UserRegistered announces a new identity record. Consumers create or
// update their local replica from it. The hash rides along so replicas
// can verify credentials without a round trip to the auth service.
type UserRegistered struct {
	UserID       int64     `json:"user_id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone,omitempty"`
	PasswordHash string    `json:"password_hash,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// UserProfileCreated mirrors a profile row materialized by the user
// service, including the cached credential hash.
type UserProfileCreated struct {
	UserID       int64     `json:"user_id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone,omitempty"`
	PasswordHash string    `json:"password_hash,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// UserProfileUpdated carries a partial patch. Nil fields were not part
// of the update and must be left untouched by consumers.
type UserProfileUpdated struct {
	UserID    int64     `json:"user_id"`
	Email     *string   `json:"email,omitempty"`
	Name      *string   `json:"name,omitempty"`
	Phone     *string   `json:"phone,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// UserPasswordChanged replaces the credential hash everywhere when the
// hash is non-empty.
type UserPasswordChanged struct {
	UserID       int64     `json:"user_id"`
	PasswordHash string    `json:"password_hash"`
	Timestamp    time.Time `json:"timestamp"`
}

// UserDataSynced is the authoritative snapshot answering a sync
// request. Consumers only fill fields that are still blank locally.
type UserDataSynced struct {
	UserID       int64     `json:"user_id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone,omitempty"`
	PasswordHash string    `json:"password_hash,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// UserSyncRequested asks the identity owner to re-publish a snapshot.
type UserSyncRequested struct {
	UserID    int64     `json:"user_id"`
	Requester string    `json:"requester"`
	Timestamp time.Time `json:"timestamp"`
}

type UserBlocked struct {
	UserID    int64     `json:"user_id"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type UserUnblocked struct {
	UserID    int64     `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

type UserAdminMade struct {
	UserID    int64     `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

type UserAdminRemoved struct {
	UserID    int64     `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

type UserAddressCreated struct {
	UserID    int64     `json:"user_id"`
	AddressID int64     `json:"address_id"`
	City      string    `json:"city,omitempty"`
	Country   string    `json:"country,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type UserAddressUpdated struct {
	UserID    int64     `json:"user_id"`
	AddressID int64     `json:"address_id"`
	Timestamp time.Time `json:"timestamp"`
}

type UserAddressDeleted struct {
	UserID    int64     `json:"user_id"`
	AddressID int64     `json:"address_id"`
	Timestamp time.Time `json:"timestamp"`
}

type CategoryCreated struct {
	CategoryID int64     `json:"category_id"`
	Name       string    `json:"name"`
	Timestamp  time.Time `json:"timestamp"`
}

type CategoryUpdated struct {
	CategoryID int64     `json:"category_id"`
	Name       string    `json:"name"`
	Timestamp  time.Time `json:"timestamp"`
}

type CategoryDeleted struct {
	CategoryID int64     `json:"category_id"`
	Timestamp  time.Time `json:"timestamp"`
}
