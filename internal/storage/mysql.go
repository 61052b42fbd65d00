package storage

import (
	"database/sql"
	"fmt"

	"restaurant-pos/internal/config"
	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/models"

	_ "github.com/go-sql-driver/mysql"
)

type MySQLStore struct {
	db  *sql.DB
	log *logger.Logger
}

func NewMySQLStore(cfg config.DatabaseConfig, log *logger.Logger) (*MySQLStore, error) {
	log.LogDatabase("CONNECT", "mysql", fmt.Sprintf("Connecting to MySQL at %s:%s", cfg.Host, cfg.Port))

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		log.Error("DATABASE", "Failed to open MySQL connection: "+err.Error())
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MaxLifetime)

	if err := db.Ping(); err != nil {
		log.Error("DATABASE", "Failed to ping MySQL: "+err.Error())
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &MySQLStore{
		db:  db,
		log: log,
	}

	if err := store.initTables(); err != nil {
		log.Error("DATABASE", "Failed to initialize tables: "+err.Error())
		return nil, fmt.Errorf("failed to initialize tables: %w", err)
	}

	log.LogDatabase("SUCCESS", "mysql", "MySQL connection established and tables initialized")
	return store, nil
}

func (s *MySQLStore) initTables() error {
	s.log.LogDatabase("MIGRATE", "mysql", "Creating POS tables if not exist")

	queries := []string{
		`CREATE TABLE IF NOT EXISTS restaurant_tables (
            id BIGINT AUTO_INCREMENT PRIMARY KEY,
            table_number VARCHAR(20) NOT NULL UNIQUE,
            capacity INT NOT NULL,
            location VARCHAR(50) NOT NULL DEFAULT 'MAIN',
            status VARCHAR(20) NOT NULL DEFAULT 'AVAILABLE',
            current_order_id BIGINT NULL,
            position_x INT NOT NULL DEFAULT 0,
            position_y INT NOT NULL DEFAULT 0,
            width INT NOT NULL DEFAULT 0,
            height INT NOT NULL DEFAULT 0,
            shape VARCHAR(20) NOT NULL DEFAULT 'RECTANGLE',
            INDEX idx_status (status),
            INDEX idx_location (location)
        ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`,
		`CREATE TABLE IF NOT EXISTS orders (
            id BIGINT AUTO_INCREMENT PRIMARY KEY,
            order_number VARCHAR(30) NOT NULL UNIQUE,
            order_date TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
            table_id BIGINT NULL,
            order_type VARCHAR(20) NOT NULL,
            status VARCHAR(20) NOT NULL,
            guest_count INT NOT NULL DEFAULT 1,
            special_instructions TEXT,
            payment_method VARCHAR(20),
            payment_reference VARCHAR(100),
            total_amount DECIMAL(10,2) NOT NULL DEFAULT 0.00,
            INDEX idx_table_id (table_id),
            INDEX idx_status (status),
            INDEX idx_order_date (order_date)
        ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`,
		`CREATE TABLE IF NOT EXISTS order_items (
            id BIGINT AUTO_INCREMENT PRIMARY KEY,
            order_id BIGINT NOT NULL,
            product_id BIGINT NOT NULL,
            product_name VARCHAR(100) NOT NULL,
            quantity INT NOT NULL,
            unit_price DECIMAL(10,2) NOT NULL,
            subtotal DECIMAL(10,2) NOT NULL,
            notes TEXT,
            INDEX idx_order_id (order_id),
            CONSTRAINT fk_order_items_order FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE
        ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	s.log.LogDatabase("SUCCESS", "mysql", "POS tables ready")
	return nil
}

func (s *MySQLStore) SaveTable(table *models.Table) error {
	s.log.LogDatabase("INSERT", "restaurant_tables", fmt.Sprintf("Saving table %s", table.TableNumber))

	query := `
    INSERT INTO restaurant_tables (
        table_number, capacity, location, status, current_order_id,
        position_x, position_y, width, height, shape
    ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `

	res, err := s.db.Exec(query,
		table.TableNumber, table.Capacity, table.Location, table.Status, table.CurrentOrderID,
		table.PositionX, table.PositionY, table.Width, table.Height, table.Shape,
	)
	if err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Failed to save table %s: %s", table.TableNumber, err.Error()))
		return fmt.Errorf("failed to save table: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read table id: %w", err)
	}
	table.ID = id

	s.log.LogDatabase("SUCCESS", "restaurant_tables", fmt.Sprintf("Table %s saved with id %d", table.TableNumber, id))
	return nil
}

func (s *MySQLStore) GetTable(id int64) (*models.Table, error) {
	query := `
    SELECT id, table_number, capacity, location, status, current_order_id,
           position_x, position_y, width, height, shape
    FROM restaurant_tables WHERE id = ?
    `

	table := &models.Table{}
	err := s.db.QueryRow(query, id).Scan(
		&table.ID, &table.TableNumber, &table.Capacity, &table.Location, &table.Status,
		&table.CurrentOrderID, &table.PositionX, &table.PositionY, &table.Width, &table.Height, &table.Shape,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			s.log.LogDatabase("NOT_FOUND", "restaurant_tables", fmt.Sprintf("Table %d not found", id))
			return nil, ErrNotFound
		}
		s.log.Error("DATABASE", fmt.Sprintf("Failed to get table %d: %s", id, err.Error()))
		return nil, fmt.Errorf("failed to get table: %w", err)
	}

	return table, nil
}

func (s *MySQLStore) ListTables(filter models.TableFilter) ([]*models.Table, error) {
	query := `
    SELECT id, table_number, capacity, location, status, current_order_id,
           position_x, position_y, width, height, shape
    FROM restaurant_tables WHERE 1=1
    `
	args := []interface{}{}

	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, filter.Status)
	}
	if filter.Location != "" {
		query += " AND location = ?"
		args = append(args, filter.Location)
	}
	if filter.MinCapacity > 0 {
		query += " AND capacity >= ?"
		args = append(args, filter.MinCapacity)
	}
	query += " ORDER BY table_number"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		s.log.Error("DATABASE", "Failed to list tables: "+err.Error())
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var tables []*models.Table
	for rows.Next() {
		table := &models.Table{}
		err := rows.Scan(
			&table.ID, &table.TableNumber, &table.Capacity, &table.Location, &table.Status,
			&table.CurrentOrderID, &table.PositionX, &table.PositionY, &table.Width, &table.Height, &table.Shape,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan table: %w", err)
		}
		tables = append(tables, table)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return tables, nil
}

func (s *MySQLStore) UpdateTable(table *models.Table) error {
	s.log.LogDatabase("UPDATE", "restaurant_tables", fmt.Sprintf("Updating table %d", table.ID))

	query := `
    UPDATE restaurant_tables SET
        table_number = ?, capacity = ?, location = ?, status = ?,
        position_x = ?, position_y = ?, width = ?, height = ?, shape = ?
    WHERE id = ?
    `

	res, err := s.db.Exec(query,
		table.TableNumber, table.Capacity, table.Location, table.Status,
		table.PositionX, table.PositionY, table.Width, table.Height, table.Shape,
		table.ID,
	)
	if err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Failed to update table %d: %s", table.ID, err.Error()))
		return fmt.Errorf("failed to update table: %w", err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := s.GetTable(table.ID); err != nil {
			return err
		}
	}
	return nil
}

func (s *MySQLStore) DeleteTable(id int64) error {
	s.log.LogDatabase("DELETE", "restaurant_tables", fmt.Sprintf("Deleting table %d", id))

	res, err := s.db.Exec(`DELETE FROM restaurant_tables WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete table: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// BindOrder sets the order reference and OCCUPIED status in one statement so
// no reader can observe an occupied table without an order.
func (s *MySQLStore) BindOrder(tableID, orderID int64) error {
	s.log.LogDatabase("UPDATE", "restaurant_tables", fmt.Sprintf("Binding order %d to table %d", orderID, tableID))

	res, err := s.db.Exec(
		`UPDATE restaurant_tables SET current_order_id = ?, status = ? WHERE id = ?`,
		orderID, models.TableOccupied, tableID,
	)
	if err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Failed to bind order %d to table %d: %s", orderID, tableID, err.Error()))
		return fmt.Errorf("failed to bind order: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := s.GetTable(tableID); err != nil {
			return err
		}
	}
	return nil
}

func (s *MySQLStore) UnbindOrder(tableID int64, status models.TableStatus) error {
	s.log.LogDatabase("UPDATE", "restaurant_tables", fmt.Sprintf("Unbinding order from table %d -> %s", tableID, status))

	res, err := s.db.Exec(
		`UPDATE restaurant_tables SET current_order_id = NULL, status = ? WHERE id = ?`,
		status, tableID,
	)
	if err != nil {
		return fmt.Errorf("failed to unbind order: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := s.GetTable(tableID); err != nil {
			return err
		}
	}
	return nil
}

func (s *MySQLStore) SaveOrder(order *models.Order) error {
	s.log.LogDatabase("INSERT", "orders", fmt.Sprintf("Saving order %s", order.OrderNumber))

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
    INSERT INTO orders (
        order_number, order_date, table_id, order_type, status, guest_count,
        special_instructions, payment_method, payment_reference, total_amount
    ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.OrderNumber, order.OrderDate, order.TableID, order.Type, order.Status,
		order.GuestCount, order.SpecialInstructions, order.PaymentMethod,
		order.PaymentReference, order.TotalAmount,
	)
	if err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Failed to save order %s: %s", order.OrderNumber, err.Error()))
		return fmt.Errorf("failed to save order: %w", err)
	}

	orderID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read order id: %w", err)
	}
	order.ID = orderID

	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = orderID
		itemRes, err := tx.Exec(`
        INSERT INTO order_items (order_id, product_id, product_name, quantity, unit_price, subtotal, notes)
        VALUES (?, ?, ?, ?, ?, ?, ?)`,
			item.OrderID, item.ProductID, item.ProductName, item.Quantity,
			item.UnitPrice, item.Subtotal, item.Notes,
		)
		if err != nil {
			return fmt.Errorf("failed to save order item: %w", err)
		}
		itemID, err := itemRes.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read order item id: %w", err)
		}
		item.ID = itemID
		item.Provisional = false
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit order: %w", err)
	}

	s.log.LogDatabase("SUCCESS", "orders", fmt.Sprintf("Order %s saved with id %d", order.OrderNumber, orderID))
	return nil
}

func (s *MySQLStore) GetOrder(id int64) (*models.Order, error) {
	query := `
    SELECT id, order_number, order_date, table_id, order_type, status, guest_count,
           special_instructions, payment_method, payment_reference, total_amount
    FROM orders WHERE id = ?
    `

	order := &models.Order{}
	var instructions, paymentMethod, paymentReference sql.NullString

	err := s.db.QueryRow(query, id).Scan(
		&order.ID, &order.OrderNumber, &order.OrderDate, &order.TableID, &order.Type,
		&order.Status, &order.GuestCount, &instructions, &paymentMethod,
		&paymentReference, &order.TotalAmount,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			s.log.LogDatabase("NOT_FOUND", "orders", fmt.Sprintf("Order %d not found", id))
			return nil, ErrNotFound
		}
		s.log.Error("DATABASE", fmt.Sprintf("Failed to get order %d: %s", id, err.Error()))
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	order.SpecialInstructions = instructions.String
	order.PaymentMethod = models.PaymentMethod(paymentMethod.String)
	order.PaymentReference = paymentReference.String

	items, err := s.getOrderItems(id)
	if err != nil {
		return nil, err
	}
	order.Items = items

	return order, nil
}

func (s *MySQLStore) getOrderItems(orderID int64) ([]models.OrderItem, error) {
	rows, err := s.db.Query(`
    SELECT id, order_id, product_id, product_name, quantity, unit_price, subtotal, notes
    FROM order_items WHERE order_id = ? ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order items: %w", err)
	}
	defer rows.Close()

	var items []models.OrderItem
	for rows.Next() {
		var item models.OrderItem
		var notes sql.NullString
		err := rows.Scan(
			&item.ID, &item.OrderID, &item.ProductID, &item.ProductName,
			&item.Quantity, &item.UnitPrice, &item.Subtotal, &notes,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		item.Notes = notes.String
		items = append(items, item)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return items, nil
}

// UpdateOrder replaces the order row and its full item set in one transaction.
func (s *MySQLStore) UpdateOrder(order *models.Order) error {
	s.log.LogDatabase("UPDATE", "orders", fmt.Sprintf("Updating order %d", order.ID))

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
    UPDATE orders SET
        order_date = ?, table_id = ?, order_type = ?, status = ?, guest_count = ?,
        special_instructions = ?, payment_method = ?, payment_reference = ?, total_amount = ?
    WHERE id = ?`,
		order.OrderDate, order.TableID, order.Type, order.Status, order.GuestCount,
		order.SpecialInstructions, order.PaymentMethod, order.PaymentReference,
		order.TotalAmount, order.ID,
	)
	if err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Failed to update order %d: %s", order.ID, err.Error()))
		return fmt.Errorf("failed to update order: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var exists int64
		if err := tx.QueryRow(`SELECT id FROM orders WHERE id = ?`, order.ID).Scan(&exists); err != nil {
			if err == sql.ErrNoRows {
				return ErrNotFound
			}
			return fmt.Errorf("failed to check order: %w", err)
		}
	}

	if _, err := tx.Exec(`DELETE FROM order_items WHERE order_id = ?`, order.ID); err != nil {
		return fmt.Errorf("failed to clear order items: %w", err)
	}

	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID
		itemRes, err := tx.Exec(`
        INSERT INTO order_items (order_id, product_id, product_name, quantity, unit_price, subtotal, notes)
        VALUES (?, ?, ?, ?, ?, ?, ?)`,
			item.OrderID, item.ProductID, item.ProductName, item.Quantity,
			item.UnitPrice, item.Subtotal, item.Notes,
		)
		if err != nil {
			return fmt.Errorf("failed to save order item: %w", err)
		}
		itemID, err := itemRes.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read order item id: %w", err)
		}
		item.ID = itemID
		item.Provisional = false
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit order update: %w", err)
	}

	s.log.LogDatabase("SUCCESS", "orders", fmt.Sprintf("Order %d updated", order.ID))
	return nil
}

func (s *MySQLStore) GetCurrentOrderByTable(tableID int64) (*models.Order, error) {
	table, err := s.GetTable(tableID)
	if err != nil {
		return nil, err
	}
	if table.CurrentOrderID == nil {
		return nil, ErrNotFound
	}
	return s.GetOrder(*table.CurrentOrderID)
}

func (s *MySQLStore) ListOrders(status models.OrderStatus) ([]*models.Order, error) {
	query := `
    SELECT id, order_number, order_date, table_id, order_type, status, guest_count,
           special_instructions, payment_method, payment_reference, total_amount
    FROM orders
    `
	args := []interface{}{}
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, status)
	}
	query += " ORDER BY order_date DESC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		order := &models.Order{}
		var instructions, paymentMethod, paymentReference sql.NullString
		err := rows.Scan(
			&order.ID, &order.OrderNumber, &order.OrderDate, &order.TableID, &order.Type,
			&order.Status, &order.GuestCount, &instructions, &paymentMethod,
			&paymentReference, &order.TotalAmount,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		order.SpecialInstructions = instructions.String
		order.PaymentMethod = models.PaymentMethod(paymentMethod.String)
		order.PaymentReference = paymentReference.String
		orders = append(orders, order)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	for _, order := range orders {
		items, err := s.getOrderItems(order.ID)
		if err != nil {
			return nil, err
		}
		order.Items = items
	}

	return orders, nil
}

func (s *MySQLStore) Close() error {
	s.log.LogDatabase("CLOSE", "mysql", "Closing MySQL connection")
	return s.db.Close()
}

func (s *MySQLStore) HealthCheck() error {
	return s.db.Ping()
}
