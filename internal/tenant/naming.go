// Package tenant administra el aprovisionamiento y acceso a las bases de
// datos por vendedor: naming determinístico, registro user_id -> base en la
// base de control, y pools por tenant con creación on-demand.
package tenant

import (
	"regexp"
	"strconv"
	"strings"
)

// Sanitize elimina todo caracter fuera de [A-Za-z0-9_].
// El comportamiento exacto está pineado por test: "Jhön_López99!" -> "Jhn_Lpez99".
func Sanitize(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteByte(byte(r))
		}
	}
	return b.String()
}

// DBName deriva el nombre de la base del tenant: sanitize(nickname) + "_" + id.
// La función es pura e inyectiva porque el id numérico (único por vendedor)
// forma parte del nombre: dos nicknames que sanitizan igual no colisionan.
func DBName(nickname string, id int64) string {
	n := Sanitize(nickname)
	// MySQL limita identificadores a 64 chars; el sufijo _<id> se preserva.
	suffix := "_" + strconv.FormatInt(id, 10)
	if max := 64 - len(suffix); len(n) > max {
		n = n[:max]
	}
	return n + suffix
}

var identRe = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// ValidIdentifier valida un identificador antes de interpolarlo en DDL.
// Es la única barrera entre datos externos y SQL generado: nada que no pase
// por acá se interpola jamás.
func ValidIdentifier(s string) bool {
	return s != "" && len(s) <= 64 && identRe.MatchString(s)
}
