package graphqlsvc

import (
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/vladislavdragonenkov/crm/internal/domain"
)

const cursorPrefix = "arrayconnection:"

// maxCursorOffset ограничивает позицию курсора, чтобы offset+1 не переполнялся.
const maxCursorOffset = math.MaxInt32

var errInvalidCursor = errors.New("invalid cursor")

// encodeCursor кодирует позицию записи в выборке в непрозрачный курсор.
func encodeCursor(offset int) string {
	return base64.StdEncoding.EncodeToString([]byte(cursorPrefix + strconv.Itoa(offset)))
}

func decodeCursor(cursor string) (int, error) {
	raw, err := base64.StdEncoding.DecodeString(cursor)
	if err != nil {
		return 0, errInvalidCursor
	}
	offset, err := strconv.Atoi(strings.TrimPrefix(string(raw), cursorPrefix))
	if err != nil || !strings.HasPrefix(string(raw), cursorPrefix) || offset < 0 || offset >= maxCursorOffset {
		return 0, errInvalidCursor
	}
	return offset, nil
}

// pageFromArgs переводит relay-аргументы first/after в domain.Page.
// empty=true для first: 0, когда нужен только totalCount.
func pageFromArgs(args map[string]interface{}) (page domain.Page, empty bool, err error) {
	if after, ok := args["after"].(string); ok && after != "" {
		offset, err := decodeCursor(after)
		if err != nil {
			return domain.Page{}, false, err
		}
		page.Offset = offset + 1
	}
	if first, ok := args["first"].(int); ok {
		if first < 0 {
			return domain.Page{}, false, fmt.Errorf("argument first must be non-negative, got %d", first)
		}
		if first == 0 {
			return domain.Page{Limit: 1, Offset: page.Offset}, true, nil
		}
		page.Limit = first
	}
	return page, false, nil
}
