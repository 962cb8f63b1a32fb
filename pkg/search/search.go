// Package search - фильтр отображаемых строк зеркала.
//
// Фильтр никогда не меняет зеркало и не участвует в сохранении:
// он только выбирает, какие строки показать.
package search

import (
	"strings"
	"sync"

	"github.com/ruslano69/invmirror/pkg/mirror"
)

// Placeholder - подсказка в пустом поле поиска; считается пустым запросом
const Placeholder = "Search..."

// Source - источник строк: Mirror или предыдущий View
type Source interface {
	Rows() []mirror.Record
}

// View - отфильтрованная проекция строк (только чтение)
type View struct {
	query   string
	records []mirror.Record
}

// Rows возвращает строки представления
func (v View) Rows() []mirror.Record {
	return v.records
}

// Len - количество строк
func (v View) Len() int {
	return len(v.records)
}

// Query - запрос, которым получено представление ("" для полного)
func (v View) Query() string {
	return v.query
}

// Filtered - применен ли фильтр
func (v View) Filtered() bool {
	return v.query != ""
}

// Handles возвращает handles строк представления
func (v View) Handles() []mirror.Handle {
	out := make([]mirror.Handle, len(v.records))
	for i, r := range v.records {
		out[i] = r.Handle
	}
	return out
}

// IsBlank - пустой запрос: "", только пробелы или Placeholder
func IsBlank(text string) bool {
	t := strings.TrimSpace(text)
	return t == "" || t == Placeholder
}

// Filter оставляет строки, в тексте любой колонки которых встречается запрос
// (без учета регистра). Пустой запрос возвращает все строки источника.
func Filter(src Source, text string) View {
	if src == nil {
		return View{}
	}
	if IsBlank(text) {
		return View{records: src.Rows()}
	}

	query := strings.TrimSpace(text)
	needle := strings.ToLower(query)

	var matched []mirror.Record
	for _, rec := range src.Rows() {
		if Matches(rec, needle) {
			matched = append(matched, rec)
		}
	}
	return View{query: query, records: matched}
}

// Clear возвращает полное представление источника
func Clear(src Source) View {
	return Filter(src, "")
}

// Matches проверяет строку; needle уже в нижнем регистре
func Matches(rec mirror.Record, needle string) bool {
	for _, text := range rec.Texts() {
		if strings.Contains(strings.ToLower(text), needle) {
			return true
		}
	}
	return false
}

// Overlay хранит текущий запрос сессии и каждый раз пересчитывает
// представление по живому зеркалу, поэтому правки сразу видны.
type Overlay struct {
	mu    sync.RWMutex
	query string
}

// Set устанавливает запрос
func (o *Overlay) Set(text string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if IsBlank(text) {
		o.query = ""
		return
	}
	o.query = strings.TrimSpace(text)
}

// Reset сбрасывает запрос (перезагрузка таблицы, сохранение)
func (o *Overlay) Reset() {
	o.Set("")
}

// Query возвращает текущий запрос
func (o *Overlay) Query() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.query
}

// Active - задан ли запрос
func (o *Overlay) Active() bool {
	return o.Query() != ""
}

// View вычисляет представление по текущим строкам зеркала
func (o *Overlay) View(m *mirror.Mirror) View {
	if m == nil {
		return View{}
	}
	return Filter(m, o.Query())
}
