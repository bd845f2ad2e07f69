package service

import (
	"errors"
	"fmt"
)

var (
	ErrOffline         = errors.New("remote cart backend is offline")
	ErrSyncInFlight    = errors.New("a sync pass is already running")
	ErrNoCartIdentity  = errors.New("no cart identity available")
	ErrInvalidLineItem = errors.New("invalid line item")
	ErrOutOfStock      = errors.New("product is out of stock")
	ErrInstanceClaimed = errors.New("store is claimed by another engine instance")
)

// CartCreationError means no identity existed and the backend refused to
// create a cart. Sync passes treat it as "try again later".
type CartCreationError struct {
	Err error
}

func (e *CartCreationError) Error() string {
	return fmt.Sprintf("failed to create cart: %v", e.Err)
}

func (e *CartCreationError) Unwrap() error {
	return e.Err
}
