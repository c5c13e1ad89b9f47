package main

import (
	"fmt"
	"strings"

	"cursordb/pkg/database"
	"cursordb/pkg/execution/join"
	"cursordb/pkg/expr"
	"cursordb/pkg/primitives"
	"cursordb/pkg/table"
	"cursordb/pkg/tuple"
	"cursordb/pkg/types"
)

func intCol(name string, nullable bool) tuple.Column {
	return tuple.Column{Name: name, Type: types.IntType, Nullable: nullable}
}

func strCol(name string) tuple.Column {
	return tuple.Column{Name: name, Type: types.StringType, Nullable: true}
}

func floatCol(name string) tuple.Column {
	return tuple.Column{Name: name, Type: types.FloatType, Nullable: true}
}

func float(v float64) expr.Expr { return expr.Lit(types.NewFloatField(v)) }

// demoSchema creates users, products and orders with a few secondary
// indexes. Tables that already exist are left alone.
func demoSchema() []database.Statement {
	return []database.Statement{
		database.CreateTable{
			Name:       "users",
			Columns:    []tuple.Column{intCol("id", false), strCol("name"), strCol("email"), intCol("age", true)},
			PrimaryKey: []string{"id"},
		},
		database.CreateTable{
			Name:       "products",
			Columns:    []tuple.Column{intCol("id", false), strCol("name"), strCol("category"), floatCol("price"), intCol("stock", true)},
			PrimaryKey: []string{"id"},
		},
		database.CreateTable{
			Name:       "orders",
			Columns:    []tuple.Column{intCol("id", false), intCol("user_id", true), intCol("product_id", true), intCol("quantity", true), strCol("status")},
			PrimaryKey: []string{"id"},
		},
		database.CreateIndex{Table: "users", Index: table.IndexDef{Name: "users_by_name", Columns: []string{"name"}}},
		database.CreateIndex{Table: "products", Index: table.IndexDef{Name: "products_by_category", Columns: []string{"category", "price"}}},
		database.CreateIndex{Table: "orders", Index: table.IndexDef{Name: "orders_by_user", Columns: []string{"user_id"}}},
	}
}

func demoData() []database.Statement {
	user := func(id int64, name, email string, age int64) []expr.Expr {
		return []expr.Expr{expr.Int(id), expr.Str(name), expr.Str(email), expr.Int(age)}
	}
	product := func(id int64, name, category string, price float64, stock int64) []expr.Expr {
		return []expr.Expr{expr.Int(id), expr.Str(name), expr.Str(category), float(price), expr.Int(stock)}
	}
	order := func(id, userID, productID, qty int64, status string) []expr.Expr {
		return []expr.Expr{expr.Int(id), expr.Int(userID), expr.Int(productID), expr.Int(qty), expr.Str(status)}
	}

	return []database.Statement{
		database.Insert{Table: "users", Values: [][]expr.Expr{
			user(1, "Alice Johnson", "alice@example.com", 28),
			user(2, "Bob Smith", "bob@example.com", 35),
			user(3, "Charlie Brown", "charlie@example.com", 42),
			user(4, "Diana Prince", "diana@example.com", 31),
			user(5, "Eve Wilson", "eve@example.com", 26),
		}},
		database.Insert{Table: "products", Values: [][]expr.Expr{
			product(1, "Laptop Pro", "Electronics", 1299.99, 50),
			product(2, "Wireless Mouse", "Electronics", 29.99, 200),
			product(3, "Office Chair", "Furniture", 399.99, 75),
			product(4, "Standing Desk", "Furniture", 599.99, 30),
			product(5, "Coffee Maker", "Appliances", 79.99, 100),
		}},
		database.Insert{Table: "orders", Values: [][]expr.Expr{
			order(1, 1, 1, 1, "completed"),
			order(2, 2, 2, 2, "completed"),
			order(3, 3, 3, 1, "processing"),
			order(4, 1, 5, 1, "completed"),
			order(5, 4, 4, 1, "shipped"),
		}},
	}
}

type demoQuery struct {
	title string
	query database.Source
}

func demoQueries() []demoQuery {
	c := expr.Col
	stockValue := func() expr.Expr {
		return expr.Agg(expr.Sum, expr.Arithmetic(expr.Mul, c("", "price"), c("", "stock")))
	}
	return []demoQuery{
		{"Users older than 30, youngest first", database.Select{
			From:    database.TableRef{Name: "users"},
			Columns: []expr.Expr{c("", "name"), c("", "age")},
			Where:   expr.Compare(primitives.GreaterThan, c("", "age"), expr.Int(30)),
			OrderBy: []expr.Expr{c("", "age")},
		}},
		{"Orders with their customer and product", database.Select{
			From: database.JoinRef{
				Kind: join.Inner,
				Left: database.JoinRef{
					Kind:  join.Inner,
					Left:  database.TableRef{Name: "orders", Alias: "o"},
					Right: database.TableRef{Name: "users", Alias: "u"},
					On:    expr.Equal(c("u", "id"), c("o", "user_id")),
				},
				Right: database.TableRef{Name: "products", Alias: "p"},
				On:    expr.Equal(c("p", "id"), c("o", "product_id")),
			},
			Columns: []expr.Expr{c("o", "id"), c("u", "name"), c("p", "name"), c("o", "status")},
			OrderBy: []expr.Expr{c("o", "id")},
		}},
		{"Customers without orders", database.Select{
			From: database.JoinRef{
				Kind:  join.Left,
				Left:  database.TableRef{Name: "users", Alias: "u"},
				Right: database.TableRef{Name: "orders", Alias: "o"},
				On:    expr.Equal(c("o", "user_id"), c("u", "id")),
			},
			Columns: []expr.Expr{c("u", "name")},
			Where:   &expr.IsNullExpr{Operand: c("o", "id")},
		}},
		{"Stock value per category", database.Select{
			From: database.TableRef{Name: "products"},
			Columns: []expr.Expr{
				c("", "category"),
				expr.CountAll(),
				stockValue(),
			},
			Names:   []string{"category", "products", "stock_value"},
			GroupBy: []expr.Expr{c("", "category")},
			OrderBy: []expr.Expr{expr.Descending(stockValue())},
		}},
	}
}

// runDemoMode sets up sample tables and data, then prints a few queries
func runDemoMode(db *database.Database) error {
	fmt.Println("Creating sample database...")

	conn := db.Connect()
	defer conn.Close()
	f := database.NewResultFormatter()

	existing := make(map[string]bool)
	for _, name := range db.GetTables() {
		existing[name] = true
	}
	if existing["users"] {
		fmt.Println("Sample tables already exist, skipping data load.")
	} else {
		for _, stmt := range append(demoSchema(), demoData()...) {
			n, err := conn.Exec(stmt)
			res := f.FormatExec(stmt, n, err)
			if !res.Success {
				return fmt.Errorf("failed to execute demo statement: %w", res.Error)
			}
			fmt.Println("  " + res.Message)
		}
	}

	for _, q := range demoQueries() {
		rs, err := conn.Query(q.query)
		if err != nil {
			return fmt.Errorf("%s: %w", q.title, err)
		}
		res := f.FormatRows(rs)
		if err := rs.Close(); err != nil {
			return err
		}
		if !res.Success {
			return fmt.Errorf("%s: %w", q.title, res.Error)
		}
		fmt.Printf("\n%s\n%s\n%s\n", q.title, strings.Repeat("=", len(q.title)), f.Render(res))
	}

	fmt.Println("\nRun `cursordb browse` to page through the tables.")
	return nil
}

// inspectIndexes prints the trie statistics of every index of the named
// tables, or of all tables.
func inspectIndexes(db *database.Database, names []string) error {
	if len(names) == 0 {
		names = db.GetTables()
	}

	res := database.QueryResult{
		Columns: []string{"table", "index", "columns", "unique", "nodes", "keys", "rows", "depth", "compressed"},
	}
	for _, name := range names {
		t, err := db.Table(name)
		if err != nil {
			return err
		}
		for _, ix := range t.Indexes() {
			s, err := ix.Trie().Stats()
			if err != nil {
				return fmt.Errorf("index %s: %w", ix.Name, err)
			}
			res.Rows = append(res.Rows, []string{
				t.Name(), ix.Name, strings.Join(ix.Columns, ","), fmt.Sprint(ix.Unique),
				fmt.Sprint(s.Nodes), fmt.Sprint(s.Keys), fmt.Sprint(s.Offsets),
				fmt.Sprint(s.MaxDepth), fmt.Sprint(s.Compressed),
			})
		}
	}
	res.Message = fmt.Sprintf("%d index(es)", len(res.Rows))
	fmt.Println(database.NewResultFormatter().Render(res))
	return nil
}
