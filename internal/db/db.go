package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"timeclock/internal/db/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound is returned when a referenced row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInUse is returned when a delete is blocked by referencing rows.
	ErrInUse = errors.New("still referenced by other records")
	// ErrOverlap is returned when a closed interval would overlap an
	// existing entry of the same employee on the same date.
	ErrOverlap = errors.New("time entries must not overlap")
	// ErrOpenConflict is returned when a second open entry for an employee
	// is rejected by the one-open-entry unique index.
	ErrOpenConflict = errors.New("employee already has an open entry")
)

type DB struct {
	*pgxpool.Pool
}

func New(config struct {
	Host     string `yaml:"host" env:"DB_HOST,required"`
	Port     int    `yaml:"port" env:"DB_PORT,required"`
	User     string `yaml:"user" env:"DB_USER,required"`
	Password string `yaml:"password" env:"DB_PASSWORD,required"`
	DBName   string `yaml:"dbname" env:"DB_NAME,required"`
	SSLMode  string `yaml:"sslmode" env:"DB_SSLMODE,required"`
}) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		config.User, config.Password, config.Host, config.Port, config.DBName, config.SSLMode,
	))
	if err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	cfg.MaxConns = 10
	cfg.MinConns = 2
	cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("error creating connection pool: %w", err)
	}

	return &DB{pool}, nil
}

// CreateCustomer inserts a new customer. Empty billing fields are derived
// from the base address and email.
func (db *DB) CreateCustomer(ctx context.Context, c *models.Customer) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	if c.BillingAddress == "" {
		c.BillingAddress = c.Address
		c.BillingPostalCode = c.PostalCode
		c.BillingCity = c.City
	}
	if c.BillingEmail == "" {
		c.BillingEmail = c.Email
	}

	query := `
		INSERT INTO customers (
			id, company, contact_person, address, postal_code, city, email, phone,
			default_hourly_rate, billing_address, billing_postal_code, billing_city,
			billing_email, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := db.Exec(ctx, query,
		c.ID.String(),
		c.Company,
		c.ContactPerson,
		c.Address,
		c.PostalCode,
		c.City,
		c.Email,
		c.Phone,
		c.DefaultHourlyRate,
		c.BillingAddress,
		c.BillingPostalCode,
		c.BillingCity,
		c.BillingEmail,
		c.CreatedAt,
	)
	return err
}

// ListCustomers returns all customers, oldest first.
func (db *DB) ListCustomers(ctx context.Context) ([]*models.Customer, error) {
	query := `
		SELECT id, company, contact_person, address, postal_code, city, email, phone,
			default_hourly_rate, billing_address, billing_postal_code, billing_city,
			billing_email, created_at
		FROM customers
		ORDER BY created_at`

	rows, err := db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var customers []*models.Customer
	for rows.Next() {
		c := &models.Customer{}
		err := rows.Scan(
			&c.ID, &c.Company, &c.ContactPerson, &c.Address, &c.PostalCode, &c.City,
			&c.Email, &c.Phone, &c.DefaultHourlyRate, &c.BillingAddress,
			&c.BillingPostalCode, &c.BillingCity, &c.BillingEmail, &c.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

// DeleteCustomer removes a customer unless projects or time entries still
// reference it.
func (db *DB) DeleteCustomer(ctx context.Context, id uuid.UUID) error {
	var exists bool
	err := db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM projects WHERE customer_id = $1
			UNION ALL
			SELECT 1 FROM time_entries WHERE customer_id = $1
		)`, id.String()).Scan(&exists)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("customer %s: %w", id, ErrInUse)
	}

	tag, err := db.Exec(ctx, `DELETE FROM customers WHERE id = $1`, id.String())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("customer %s: %w", id, ErrNotFound)
	}
	return nil
}

// CreateProject inserts a project for an existing customer. Status defaults
// to "Open".
func (db *DB) CreateProject(ctx context.Context, p *models.Project) error {
	var customerExists bool
	err := db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM customers WHERE id = $1)`,
		p.CustomerID.String()).Scan(&customerExists)
	if err != nil {
		return err
	}
	if !customerExists {
		return fmt.Errorf("customer %s: %w", p.CustomerID, ErrNotFound)
	}

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = "Open"
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO projects (id, customer_id, title, description, is_quote,
			hourly_rate, status, path, tags, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err = db.Exec(ctx, query,
		p.ID.String(),
		p.CustomerID.String(),
		p.Title,
		p.Description,
		p.IsQuote,
		p.HourlyRate,
		p.Status,
		p.Path,
		p.Tags,
		p.CreatedAt,
	)
	return err
}

// ListOpenProjects returns projects with status "Open" joined with their
// customer's company name, for the stamping dropdown.
func (db *DB) ListOpenProjects(ctx context.Context) ([]*models.ProjectWithCustomer, error) {
	query := `
		SELECT p.id, p.customer_id, p.title, p.description, p.is_quote,
			p.hourly_rate, p.status, p.path, p.tags, p.created_at, c.company
		FROM projects p
		JOIN customers c ON p.customer_id = c.id
		WHERE p.status = 'Open'
		ORDER BY p.created_at`

	rows, err := db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []*models.ProjectWithCustomer
	for rows.Next() {
		p := &models.ProjectWithCustomer{}
		err := rows.Scan(
			&p.ID, &p.CustomerID, &p.Title, &p.Description, &p.IsQuote,
			&p.HourlyRate, &p.Status, &p.Path, &p.Tags, &p.CreatedAt,
			&p.CustomerCompany,
		)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// GetProject retrieves a project with its customer name, or nil when absent.
func (db *DB) GetProject(ctx context.Context, id uuid.UUID) (*models.ProjectWithCustomer, error) {
	query := `
		SELECT p.id, p.customer_id, p.title, p.description, p.is_quote,
			p.hourly_rate, p.status, p.path, p.tags, p.created_at, c.company
		FROM projects p
		JOIN customers c ON p.customer_id = c.id
		WHERE p.id = $1`

	p := &models.ProjectWithCustomer{}
	err := db.QueryRow(ctx, query, id.String()).Scan(
		&p.ID, &p.CustomerID, &p.Title, &p.Description, &p.IsQuote,
		&p.HourlyRate, &p.Status, &p.Path, &p.Tags, &p.CreatedAt,
		&p.CustomerCompany,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// SetProjectPath records the project's folder path after the scaffold has
// been created on disk.
func (db *DB) SetProjectPath(ctx context.Context, id uuid.UUID, path string) error {
	_, err := db.Exec(ctx, `UPDATE projects SET path = $1 WHERE id = $2`, path, id.String())
	return err
}

// DeleteProject removes a project unless time entries still reference it.
func (db *DB) DeleteProject(ctx context.Context, id uuid.UUID) error {
	var used bool
	err := db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM time_entries WHERE project_id = $1)`,
		id.String()).Scan(&used)
	if err != nil {
		return err
	}
	if used {
		return fmt.Errorf("project %s: %w", id, ErrInUse)
	}

	tag, err := db.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id.String())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	return nil
}

// GetOrCreateEmployee retrieves an employee by Discord ID or creates one.
func (db *DB) GetOrCreateEmployee(ctx context.Context, discordID, username string) (*models.Employee, error) {
	query := `
		SELECT id, discord_id, username, is_admin, can_manage_projects,
			can_see_customers_projects, active, created_at
		FROM employees
		WHERE discord_id = $1`

	emp := &models.Employee{}
	err := db.QueryRow(ctx, query, discordID).Scan(
		&emp.ID, &emp.DiscordID, &emp.Username, &emp.IsAdmin,
		&emp.CanManageProjects, &emp.CanSeeCustomersProjects, &emp.Active,
		&emp.CreatedAt,
	)

	if err == pgx.ErrNoRows {
		emp = &models.Employee{
			ID:        uuid.New(),
			DiscordID: discordID,
			Username:  username,
			Active:    true,
			CreatedAt: time.Now(),
		}

		insertQuery := `
			INSERT INTO employees (id, discord_id, username, is_admin,
				can_manage_projects, can_see_customers_projects, active, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

		_, err = db.Exec(ctx, insertQuery,
			emp.ID.String(),
			emp.DiscordID,
			emp.Username,
			emp.IsAdmin,
			emp.CanManageProjects,
			emp.CanSeeCustomersProjects,
			emp.Active,
			emp.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("error creating employee: %w", err)
		}
		return emp, nil
	}

	if err != nil {
		return nil, fmt.Errorf("error getting employee: %w", err)
	}

	return emp, nil
}

// GetEmployeeByDiscordID returns the employee for a Discord user, or nil.
func (db *DB) GetEmployeeByDiscordID(ctx context.Context, discordID string) (*models.Employee, error) {
	query := `
		SELECT id, discord_id, username, is_admin, can_manage_projects,
			can_see_customers_projects, active, created_at
		FROM employees
		WHERE discord_id = $1`

	emp := &models.Employee{}
	err := db.QueryRow(ctx, query, discordID).Scan(
		&emp.ID, &emp.DiscordID, &emp.Username, &emp.IsAdmin,
		&emp.CanManageProjects, &emp.CanSeeCustomersProjects, &emp.Active,
		&emp.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return emp, nil
}

// ListEmployees returns all employees.
func (db *DB) ListEmployees(ctx context.Context) ([]*models.Employee, error) {
	query := `
		SELECT id, discord_id, username, is_admin, can_manage_projects,
			can_see_customers_projects, active, created_at
		FROM employees
		ORDER BY username`

	rows, err := db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var employees []*models.Employee
	for rows.Next() {
		emp := &models.Employee{}
		err := rows.Scan(
			&emp.ID, &emp.DiscordID, &emp.Username, &emp.IsAdmin,
			&emp.CanManageProjects, &emp.CanSeeCustomersProjects, &emp.Active,
			&emp.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		employees = append(employees, emp)
	}
	return employees, rows.Err()
}

// UpdateEmployeeFlags sets an employee's capability flags.
func (db *DB) UpdateEmployeeFlags(ctx context.Context, id uuid.UUID, isAdmin, canManageProjects, canSeeCustomersProjects bool) error {
	tag, err := db.Exec(ctx, `
		UPDATE employees
		SET is_admin = $1, can_manage_projects = $2, can_see_customers_projects = $3
		WHERE id = $4`,
		isAdmin, canManageProjects, canSeeCustomersProjects, id.String())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("employee %s: %w", id, ErrNotFound)
	}
	return nil
}
