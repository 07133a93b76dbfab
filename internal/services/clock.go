package services

import (
	"time"

	"nft-marketplace/internal/domain"
)

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the wall-clock ledger time source used outside tests.
func SystemClock() domain.Clock { return systemClock{} }
