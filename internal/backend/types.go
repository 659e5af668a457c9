package backend

import "fmt"

// Envelope is the response shape every backend endpoint uses.
type Envelope[T any] struct {
	Success    bool        `json:"success"`
	Data       T           `json:"data"`
	Error      string      `json:"error,omitempty"`
	Message    string      `json:"message,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

// Pagination describes one page of a listing.
type Pagination struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"totalPages"`
	HasNext    bool `json:"hasNext"`
	HasPrev    bool `json:"hasPrev"`
}

// Category is a catalog category with its children.
type Category struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Slug          string     `json:"slug"`
	ParentID      string     `json:"parentId,omitempty"`
	Subcategories []Category `json:"subcategories"`
}

// Product is a catalog entry.
type Product struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	CategoryID   string `json:"categoryId"`
	Manufacturer string `json:"manufacturer,omitempty"`
	Component    string `json:"component,omitempty"`
	Part         string `json:"part,omitempty"`
	Image        string `json:"image,omitempty"`
}

// ProductPage is one page of filtered products.
type ProductPage struct {
	Products   []Product  `json:"products"`
	Pagination Pagination `json:"pagination"`
}

// Job is a career posting.
type Job struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Department  string `json:"department"`
	Location    string `json:"location,omitempty"`
	Description string `json:"description,omitempty"`
}

// ContactSubmission is a message sent through the contact form.
type ContactSubmission struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Company string `json:"company,omitempty"`
	Message string `json:"message"`
}

// APIError is returned when the backend answers with success:false or a
// non-2xx status.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned status %d", e.Status)
	}
	return fmt.Sprintf("backend error (status %d): %s", e.Status, e.Message)
}
