package tenant

import "fmt"

// Topics conocidos del marketplace. Cada uno tiene su tabla homónima;
// todo lo demás cae en la tabla catch-all.
var Topics = []string{
	"items",
	"payments",
	"orders_feedback",
	"claims",
	"orders_v2",
	"items_prices",
	"shipments",
	"fbm_stock_operations",
	"messages",
	"questions",
	"stock_locations",
}

// CatchAllTable recibe las notificaciones de topics no enumerados.
const CatchAllTable = "notifications"

// Tables es el set completo que se crea al aprovisionar un tenant.
func Tables() []string {
	return append(append([]string{}, Topics...), CatchAllTable)
}

// CreateDatabaseStmt genera el CREATE DATABASE idempotente de una base.
// Valida el identificador antes de interpolarlo; es la misma barrera que
// usa el aprovisionamiento de tenants.
func CreateDatabaseStmt(dbName string) (string, error) {
	if !ValidIdentifier(dbName) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, dbName)
	}
	return fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", dbName), nil
}

// notificationTableDDL genera el CREATE TABLE del esquema fijo de
// notificaciones. qualified es el nombre (opcionalmente `db`.`tabla`) ya
// validado con ValidIdentifier y escapado con backticks por el caller.
func notificationTableDDL(qualified string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s ("+
		"id INT AUTO_INCREMENT PRIMARY KEY, "+
		"_id VARCHAR(255), "+
		"resource VARCHAR(255), "+
		"topic VARCHAR(50), "+
		"application_id VARCHAR(30), "+
		"attempts INT, "+
		"sent DATETIME(3), "+
		"received DATETIME(3), "+
		"user_id VARCHAR(45)"+
		")", qualified)
}
