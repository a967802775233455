// Package tabsh provides an interactive shell for inspecting tabular
// datasets with SQL.
//
// Datasets are registered under a name from local files (CSV, TSV, NDJSON,
// Parquet and Excel, optionally compressed with gzip, bzip2, xz or
// zstandard) or from a table of a PostgreSQL, MySQL or SQL Server database.
// Once registered they can be listed, summarized and queried.
//
// # Execution model
//
// A Shell owns the query engine. Commands submitted from any number of
// goroutines are queued and executed one at a time, in arrival order, by a
// single worker goroutine:
//
//	eng, err := engine.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	shell := tabsh.NewShell(eng)
//	defer shell.Close()
//
//	conn, _ := model.ParseDatasetConn("sales.csv.gz")
//	out, err := shell.Submit(tabsh.ConnectCommand{Conn: conn, Name: "sales"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(out)
//
// A failed command returns its error to the caller and the worker keeps
// running. Submitting to a closed shell is fatal.
//
// # Commands
//
// The REPL accepts the following commands, parsed by ParseLine:
//
//	connect <conn_str> [--table T] --name N
//	list
//	schema <name>
//	describe <name>
//	head <name> [--n N]
//	sql <query>
//
// Connection strings are either a file path, whose extensions select the
// format and compression (for example "data.csv.gz"), or a database URL
// starting with postgres://, mysql:// or sqlserver://. Database sources
// require --table.
package tabsh
