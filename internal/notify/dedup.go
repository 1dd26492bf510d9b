package notify

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/enlacell/melibridge/internal/domain"
)

// LatestPerResource separa las filas en sobrevivientes (la más reciente por
// resource según received) y obsoletas (el resto). Función pura; el orden de
// los sobrevivientes sigue el orden de primera aparición del resource.
func LatestPerResource(rows []domain.NotificationRow) (keep, stale []domain.NotificationRow) {
	latest := make(map[string]int) // resource -> índice en keep
	for _, row := range rows {
		idx, seen := latest[row.Resource]
		if !seen {
			latest[row.Resource] = len(keep)
			keep = append(keep, row)
			continue
		}
		if row.Received.After(keep[idx].Received) {
			stale = append(stale, keep[idx])
			keep[idx] = row
		} else {
			stale = append(stale, row)
		}
	}
	return keep, stale
}

// Dedup ejecuta el pase de deduplicación best-effort sobre la tabla de un
// tenant: agrupa por resource, conserva la fila con received más reciente y
// borra las demás. Retorna los sobrevivientes y cuántas filas se eliminaron.
func Dedup(ctx context.Context, db *sql.DB, table, userID string) ([]domain.NotificationRow, int, error) {
	rows, err := fetchRows(ctx, db, table, userID)
	if err != nil {
		return nil, 0, err
	}

	keep, stale := LatestPerResource(rows)
	if len(stale) == 0 {
		return keep, 0, nil
	}

	deleted := 0
	for _, row := range stale {
		res, err := db.ExecContext(ctx,
			fmt.Sprintf("DELETE FROM `%s` WHERE id = ?", table), row.ID)
		if err != nil {
			// Best-effort: un DELETE fallido no aborta el pase.
			continue
		}
		if n, _ := res.RowsAffected(); n > 0 {
			deleted += int(n)
		}
	}
	return keep, deleted, nil
}

// DeleteByResource borra todas las filas cuyo resource matchea el sufijo
// dado (p.ej. "/questions/123" al responder una pregunta).
func DeleteByResource(ctx context.Context, db *sql.DB, table, resourceSuffix string) (int64, error) {
	res, err := db.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM `%s` WHERE resource LIKE ?", table),
		"%"+resourceSuffix)
	if err != nil {
		return 0, fmt.Errorf("notify: delete por resource: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// DeleteRow borra una fila puntual (pregunta ya respondida detectada en el
// fetch live).
func DeleteRow(ctx context.Context, db *sql.DB, table string, id int64) error {
	_, err := db.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM `%s` WHERE id = ?", table), id)
	return err
}

func fetchRows(ctx context.Context, db *sql.DB, table, userID string) ([]domain.NotificationRow, error) {
	query := fmt.Sprintf("SELECT id, _id, resource, topic, application_id, attempts, sent, received, user_id FROM `%s` WHERE user_id = ?", table)
	rows, err := db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("notify: fetch %s: %w", table, err)
	}
	defer rows.Close()

	var out []domain.NotificationRow
	for rows.Next() {
		var r domain.NotificationRow
		if err := rows.Scan(&r.ID, &r.NotifID, &r.Resource, &r.Topic,
			&r.ApplicationID, &r.Attempts, &r.Sent, &r.Received, &r.UserID); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
