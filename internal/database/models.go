package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type Account struct {
	ID           uuid.UUID
	Username     string
	PasswordHash string
	Role         string
	IsActive     bool
	CreatedAt    time.Time
}

type Status struct {
	ID          uuid.UUID
	StatusCode  string
	DisplayName string
	Description pgtype.Text
	IsActive    bool
	ViewOrder   pgtype.Int4
}

type Customer struct {
	ID          uuid.UUID
	FbUID       string
	FbUsername  pgtype.Text
	Name        pgtype.Text
	FbURL       pgtype.Text
	Addresses   []string
	PhoneNumber pgtype.Text
	AvatarURL   pgtype.Text
	Notes       pgtype.Text
	IsActive    bool
	CreatedDate time.Time
}

type Post struct {
	ID                 string
	GroupID            string
	Description        pgtype.Text
	Items              []byte
	Tags               []string
	ImportPrice        pgtype.Numeric
	ImageURLs          []string
	OrdersLastUpdateAt pgtype.Timestamptz
	CreatedTime        pgtype.Timestamptz
	UpdatedTime        pgtype.Timestamptz
}

type Order struct {
	OrderID            string
	GroupID            string
	PostID             string
	CommentID          pgtype.Text
	CommentURL         pgtype.Text
	CommentText        pgtype.Text
	CommentCreatedTime pgtype.Timestamptz
	CustomerURL        string
	CustomerUID        string
	Qty                int64
	ItemType           pgtype.Text
	Currency           string
	UnitPrice          pgtype.Numeric
	TotalPrice         pgtype.Numeric
	MatchedItem        []byte
	PriceCalc          []byte
	StatusCode         string
	StatusHistory      []byte
	UserSnapshot       []byte
	Note               pgtype.Text
	ParsedAt           time.Time
}
