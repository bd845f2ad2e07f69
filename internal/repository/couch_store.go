package repository

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-kivik/kivik/v4"
)

type kvDocument struct {
	ID        string    `json:"_id"`
	Rev       string    `json:"_rev,omitempty"`
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CouchStore keeps each key in its own CouchDB document ("kv:<key>").
type CouchStore struct {
	client *kivik.Client
	dbName string
}

func NewCouchStore(client *kivik.Client, dbName string) *CouchStore {
	return &CouchStore{
		client: client,
		dbName: dbName,
	}
}

// OpenCouchStore connects to CouchDB and creates dbName when missing.
func OpenCouchStore(ctx context.Context, url, dbName string) (*CouchStore, error) {
	client, err := kivik.New("couch", url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to CouchDB: %w", err)
	}

	exists, err := client.DBExists(ctx, dbName)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to check database existence: %w", err)
	}

	if !exists {
		if err := client.CreateDB(ctx, dbName); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
	}

	return NewCouchStore(client, dbName), nil
}

func kvDocID(key string) string {
	return fmt.Sprintf("kv:%s", key)
}

func (s *CouchStore) Get(ctx context.Context, key string) ([]byte, error) {
	db := s.client.DB(s.dbName)

	row := db.Get(ctx, kvDocID(key))

	var doc kvDocument
	if err := row.ScanDoc(&doc); err != nil {
		if kivik.HTTPStatus(err) == http.StatusNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}

	return []byte(doc.Value), nil
}

func (s *CouchStore) Set(ctx context.Context, key string, value []byte) error {
	db := s.client.DB(s.dbName)
	docID := kvDocID(key)

	rev, err := db.GetRev(ctx, docID)
	if err != nil && kivik.HTTPStatus(err) != http.StatusNotFound {
		return fmt.Errorf("failed to fetch revision for %s: %w", key, err)
	}

	doc := kvDocument{
		ID:        docID,
		Rev:       rev,
		Key:       key,
		Value:     string(value),
		UpdatedAt: time.Now().UTC(),
	}

	if _, err := db.Put(ctx, docID, doc); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}

	return nil
}

func (s *CouchStore) Remove(ctx context.Context, key string) error {
	db := s.client.DB(s.dbName)
	docID := kvDocID(key)

	rev, err := db.GetRev(ctx, docID)
	if err != nil {
		if kivik.HTTPStatus(err) == http.StatusNotFound {
			return nil
		}
		return fmt.Errorf("failed to fetch revision for %s: %w", key, err)
	}

	if _, err := db.Delete(ctx, docID, rev); err != nil && kivik.HTTPStatus(err) != http.StatusNotFound {
		return fmt.Errorf("failed to remove %s: %w", key, err)
	}

	return nil
}

func (s *CouchStore) Ping(ctx context.Context) error {
	exists, err := s.client.DBExists(ctx, s.dbName)
	if err != nil {
		return fmt.Errorf("couchdb unreachable: %w", err)
	}
	if !exists {
		return fmt.Errorf("database %s does not exist", s.dbName)
	}
	return nil
}

func (s *CouchStore) Close() error {
	return s.client.Close()
}
