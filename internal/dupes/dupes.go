// Package dupes 在派生列中查找重复值，并按首次出现顺序报告对应的标识列。
package dupes

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"llmcsv/internal/diag"
	"llmcsv/pkg/contract"
)

// ErrColumnMissing: 表头中不存在派生列。
var ErrColumnMissing = errors.New("column not found")

// Group: 共享同一派生值的一组标识。
type Group struct {
	Value string
	IDs   []string
}

// Find 单遍分组：跳过空值，仅保留成员数 >1 的组，按值首次出现排序。
func Find(t contract.Table, column string) ([]Group, error) {
	ci := t.ColumnIndex(column)
	if ci < 0 {
		return nil, fmt.Errorf("%q: %w", column, ErrColumnMissing)
	}
	order := make([]string, 0)
	ids := make(map[string][]string)
	for _, r := range t.Rows {
		if ci >= len(r) || r[ci] == "" {
			continue
		}
		v := r[ci]
		if _, seen := ids[v]; !seen {
			order = append(order, v)
		}
		ids[v] = append(ids[v], t.ID(r))
	}
	var out []Group
	for _, v := range order {
		if len(ids[v]) > 1 {
			out = append(out, Group{Value: v, IDs: ids[v]})
		}
	}
	return out, nil
}

// Report 打印分组；无重复时打印一行确认。
func Report(w io.Writer, groups []Group, derivedLabel, idLabel string) error {
	if len(groups) == 0 {
		_, err := fmt.Fprintf(w, "✅ No duplicate '%s' entries found.\n", derivedLabel)
		return err
	}
	for _, g := range groups {
		if _, err := fmt.Fprintf(w, "%s: %s\n%s: %s\n\n", derivedLabel, g.Value, idLabel, strings.Join(g.IDs, ", ")); err != nil {
			return err
		}
	}
	return nil
}

// Check 读取 path 并报告 column 的重复值。
// 文件缺失/不可读、无表头、无数据行、缺列均为致命错误（ErrFatalConfig）。
func Check(ctx context.Context, r contract.TableReader, path, column string, w io.Writer, logger *diag.Logger) ([]Group, error) {
	timer := logger.Start("dupes", "check")
	t, err := r.Read(ctx, path)
	switch {
	case err != nil:
		err = fmt.Errorf("read %s: %v: %w", path, err, contract.ErrFatalConfig)
	case len(t.Columns) == 0:
		err = fmt.Errorf("%s has no headers: %w", path, contract.ErrFatalConfig)
	case len(t.Rows) == 0:
		err = fmt.Errorf("%s is empty: %w", path, contract.ErrFatalConfig)
	}
	if err != nil {
		logger.Error("dupes", string(diag.Classify(err)), err.Error(), nil)
		return nil, err
	}
	groups, err := Find(t, column)
	if err != nil {
		err = fmt.Errorf("%s: %w: %w", path, err, contract.ErrFatalConfig)
		logger.Error("dupes", string(diag.Classify(err)), err.Error(), nil)
		return nil, err
	}
	if err := Report(w, groups, column, t.Columns[0]); err != nil {
		return groups, err
	}
	timer.Finish("check", int64(len(groups)))
	diag.IncOp("dupes", "finish", "success")
	return groups, nil
}
