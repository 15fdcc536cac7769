package model

// Catalog records referenced by offerings. These are owned by admins and
// maintained through the manual class-add flow; they have no lifecycle of
// their own.

// Course is a taught subject identified by its code ("CS-2", "CSLAB-1").
type Course struct {
	ID    uint64 `json:"id"`
	Code  string `json:"code"`
	Title string `json:"title"`
}

// Teacher is a catalog entry only; teachers do not log in.
type Teacher struct {
	ID        uint64  `json:"id"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Email     *string `json:"email,omitempty"`
}

// Department groups programs ("Computer Science").
type Department struct {
	ID   uint64 `json:"id"`
	Name string `json:"name"`
}

// Program is a degree program within a department ("Software Engineering").
type Program struct {
	ID           uint64 `json:"id"`
	Name         string `json:"name"`
	DepartmentID uint64 `json:"department_id"`
}
