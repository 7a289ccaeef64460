package sandbox

import (
	"errors"
	"sync"
)

// CustomerRecord is a core-banking directory entry keyed by account number.
type CustomerRecord struct {
	CustomerID  string
	ProductCode string
}

var errAccountNotFound = errors.New("no customer found for this account")

// Directory is the in-memory stand-in for the core-banking customer lookup.
type Directory struct {
	mu       sync.RWMutex
	accounts map[string]CustomerRecord
}

// NewDirectory builds a directory pre-seeded with demo accounts.
func NewDirectory() *Directory {
	return &Directory{accounts: map[string]CustomerRecord{
		"1000111": {CustomerID: "cus-1000111", ProductCode: "SAV01"},
		"1000222": {CustomerID: "cus-1000222", ProductCode: "CUR01"},
		"2000333": {CustomerID: "cus-2000333", ProductCode: "SAV02"},
	}}
}

// Lookup resolves an account number to its customer record.
func (d *Directory) Lookup(accountNumber string) (CustomerRecord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	rec, ok := d.accounts[accountNumber]
	if !ok {
		return CustomerRecord{}, errAccountNotFound
	}
	return rec, nil
}

// ValidatePair confirms the customer id and product code belong together.
func (d *Directory) ValidatePair(customerID, productCode string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, rec := range d.accounts {
		if rec.CustomerID == customerID && rec.ProductCode == productCode {
			return true
		}
	}
	return false
}

// Add registers an account in the directory. Used by tests and seeding.
func (d *Directory) Add(accountNumber string, rec CustomerRecord) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.accounts[accountNumber] = rec
}
