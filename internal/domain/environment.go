package domain

// Environment — партиция данных. Записи test и prod никогда не смешиваются,
// каждая операция хранилища работает строго в одной партиции.
type Environment string

const (
	EnvTest Environment = "test"
	EnvProd Environment = "prod"
)

func (e Environment) Valid() bool {
	return e == EnvTest || e == EnvProd
}

// TablePrefix — префикс таблиц партиции (test_licenses, prod_licenses и т.д.).
func (e Environment) TablePrefix() string {
	return string(e) + "_"
}

// ResolveEnvironment выбирает партицию запроса.
// Приоритет: заголовок > query-параметр > дефолт процесса.
// Невалидное значение не ошибка, просто переходим к следующему источнику.
func ResolveEnvironment(header, query string, def Environment) Environment {
	if h := Environment(header); h.Valid() {
		return h
	}
	if q := Environment(query); q.Valid() {
		return q
	}
	if def.Valid() {
		return def
	}
	return EnvTest
}
