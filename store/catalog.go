package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Catalog entities are read-mostly reference data: a Project owns End
// Products (with standard setup/cycle times), and each End Product is
// machined from one or more Drawings.

type Project struct {
	ID          int64      `json:"id"`
	ProjectCode string     `json:"project_code"`
	ProjectName string     `json:"project_name"`
	Description string     `json:"description"`
	CreatedAt   time.Time  `json:"created_at"`
	IsDeleted   bool       `json:"is_deleted"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

type EndProduct struct {
	ID             int64      `json:"id"`
	ProjectID      int64      `json:"project_id"`
	Name           string     `json:"name"`
	SAPID          string     `json:"sap_id"`
	Quantity       int64      `json:"quantity"`
	CompletionDate *time.Time `json:"completion_date,omitempty"`
	SetupTimeStd   float64    `json:"setup_time_std"` // minutes
	CycleTimeStd   float64    `json:"cycle_time_std"` // minutes per unit
	FPIRequired    bool       `json:"fpi_required"`
	LPIRequired    bool       `json:"lpi_required"`
	CreatedAt      time.Time  `json:"created_at"`
}

type Drawing struct {
	ID            int64     `json:"id"`
	DrawingNumber string    `json:"drawing_number"`
	SAPID         string    `json:"sap_id"`
	CreatedAt     time.Time `json:"created_at"`
}

func (db *DB) CreateProject(p *Project) error {
	result, err := db.Exec(db.Q(`INSERT INTO projects (project_code, project_name, description) VALUES (?, ?, ?)`),
		p.ProjectCode, p.ProjectName, p.Description)
	if err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	p.ID, err = result.LastInsertId()
	return err
}

func (db *DB) GetProject(id int64) (*Project, error) {
	row := db.QueryRow(db.Q(`SELECT id, project_code, project_name, description, created_at, is_deleted, deleted_at FROM projects WHERE id=?`), id)
	return scanProject(row)
}

func (db *DB) GetProjectByCode(code string) (*Project, error) {
	row := db.QueryRow(db.Q(`SELECT id, project_code, project_name, description, created_at, is_deleted, deleted_at FROM projects WHERE project_code=?`), code)
	return scanProject(row)
}

func scanProject(row interface{ Scan(...any) error }) (*Project, error) {
	var p Project
	var createdAt, deletedAt any
	if err := row.Scan(&p.ID, &p.ProjectCode, &p.ProjectName, &p.Description, &createdAt, &p.IsDeleted, &deletedAt); err != nil {
		return nil, err
	}
	p.CreatedAt = parseTime(createdAt)
	p.DeletedAt = parseTimePtr(deletedAt)
	return &p, nil
}

func (db *DB) ListProjects() ([]*Project, error) {
	rows, err := db.Query(db.Q(`SELECT id, project_code, project_name, description, created_at, is_deleted, deleted_at FROM projects WHERE is_deleted=? ORDER BY project_code`), false)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var projects []*Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (db *DB) SoftDeleteProject(id int64) error {
	_, err := db.Exec(db.Q(`UPDATE projects SET is_deleted=?, deleted_at=datetime('now','localtime') WHERE id=?`), true, id)
	return err
}

func (db *DB) CreateEndProduct(ep *EndProduct) error {
	var completion any
	if ep.CompletionDate != nil {
		completion = *ep.CompletionDate
	}
	result, err := db.Exec(db.Q(`INSERT INTO end_products (project_id, name, sap_id, quantity, completion_date, setup_time_std, cycle_time_std, fpi_required, lpi_required) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		ep.ProjectID, ep.Name, ep.SAPID, ep.Quantity, completion, ep.SetupTimeStd, ep.CycleTimeStd, ep.FPIRequired, ep.LPIRequired)
	if err != nil {
		return fmt.Errorf("create end product: %w", err)
	}
	ep.ID, err = result.LastInsertId()
	return err
}

const endProductCols = `id, project_id, name, sap_id, quantity, completion_date, setup_time_std, cycle_time_std, fpi_required, lpi_required, created_at`

func scanEndProduct(row interface{ Scan(...any) error }) (*EndProduct, error) {
	var ep EndProduct
	var completion, createdAt any
	err := row.Scan(&ep.ID, &ep.ProjectID, &ep.Name, &ep.SAPID, &ep.Quantity, &completion,
		&ep.SetupTimeStd, &ep.CycleTimeStd, &ep.FPIRequired, &ep.LPIRequired, &createdAt)
	if err != nil {
		return nil, err
	}
	ep.CompletionDate = parseTimePtr(completion)
	ep.CreatedAt = parseTime(createdAt)
	return &ep, nil
}

func (db *DB) GetEndProduct(id int64) (*EndProduct, error) {
	row := db.QueryRow(db.Q(fmt.Sprintf(`SELECT %s FROM end_products WHERE id=?`, endProductCols)), id)
	return scanEndProduct(row)
}

func (db *DB) GetEndProductBySAP(sapID string) (*EndProduct, error) {
	row := db.QueryRow(db.Q(fmt.Sprintf(`SELECT %s FROM end_products WHERE sap_id=?`, endProductCols)), sapID)
	return scanEndProduct(row)
}

func (db *DB) ListEndProductsByProject(projectID int64) ([]*EndProduct, error) {
	rows, err := db.Query(db.Q(fmt.Sprintf(`SELECT %s FROM end_products WHERE project_id=? ORDER BY sap_id`, endProductCols)), projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var products []*EndProduct
	for rows.Next() {
		ep, err := scanEndProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, ep)
	}
	return products, rows.Err()
}

func (db *DB) CreateDrawing(d *Drawing) error {
	result, err := db.Exec(db.Q(`INSERT INTO machine_drawings (drawing_number, sap_id) VALUES (?, ?)`),
		d.DrawingNumber, d.SAPID)
	if err != nil {
		return fmt.Errorf("create drawing: %w", err)
	}
	d.ID, err = result.LastInsertId()
	return err
}

func scanDrawing(row interface{ Scan(...any) error }) (*Drawing, error) {
	var d Drawing
	var createdAt any
	if err := row.Scan(&d.ID, &d.DrawingNumber, &d.SAPID, &createdAt); err != nil {
		return nil, err
	}
	d.CreatedAt = parseTime(createdAt)
	return &d, nil
}

func (db *DB) GetDrawing(id int64) (*Drawing, error) {
	row := db.QueryRow(db.Q(`SELECT id, drawing_number, sap_id, created_at FROM machine_drawings WHERE id=?`), id)
	return scanDrawing(row)
}

// GetDrawingByNumber resolves the drawing an operator keys in. sql.ErrNoRows
// maps to DrawingNotFound at the workflow layer.
func (db *DB) GetDrawingByNumber(number string) (*Drawing, error) {
	row := db.QueryRow(db.Q(`SELECT id, drawing_number, sap_id, created_at FROM machine_drawings WHERE drawing_number=?`), number)
	return scanDrawing(row)
}

func (db *DB) ListDrawings() ([]*Drawing, error) {
	rows, err := db.Query(db.Q(`SELECT id, drawing_number, sap_id, created_at FROM machine_drawings ORDER BY drawing_number`))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var drawings []*Drawing
	for rows.Next() {
		d, err := scanDrawing(rows)
		if err != nil {
			return nil, err
		}
		drawings = append(drawings, d)
	}
	return drawings, rows.Err()
}

// EndProductForDrawing joins drawing -> end product for standard times and
// the planned-quantity snapshot taken at setup start.
func (db *DB) EndProductForDrawing(drawingID int64) (*EndProduct, error) {
	d, err := db.GetDrawing(drawingID)
	if err != nil {
		return nil, err
	}
	ep, err := db.GetEndProductBySAP(d.SAPID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("drawing %s has no end product", d.DrawingNumber)
	}
	return ep, err
}
