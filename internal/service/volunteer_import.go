package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/guimashan/staff-schedule/internal/dto"
	"github.com/guimashan/staff-schedule/internal/model"
	pkgerrors "github.com/guimashan/staff-schedule/pkg/errors"
	"github.com/guimashan/staff-schedule/pkg/validate"
)

// MaxImportRows 单次导入的数据行上限（不含表头）
const MaxImportRows = 1000

// rowValidator 复用 binding 标签校验非 HTTP 来源的数据
var rowValidator = newRowValidator()

func newRowValidator() *validator.Validate {
	v := validator.New()
	v.SetTagName("binding")
	if err := validate.Register(v); err != nil {
		panic(err)
	}
	return v
}

func fieldErrors(err error) []string {
	if fields := validate.FieldErrors(err); len(fields) > 0 {
		return fields
	}
	return nil
}

// importAliases 字段 → 可接受的表头（不区分大小写）
var importAliases = map[string][]string{
	"name":              {"name", "姓名"},
	"phone":             {"phone", "电话", "電話"},
	"email":             {"email", "邮箱", "電子郵件"},
	"department":        {"department", "部门", "部門"},
	"skills":            {"skills", "技能"},
	"experience_years":  {"experience_years", "年资", "年資"},
	"emergency_contact": {"emergency_contact"},
	"emergency_phone":   {"emergency_phone"},
	"address":           {"address", "地址"},
	"birth_date":        {"birth_date"},
	"status":            {"status", "状态", "狀態"},
	"notes":             {"notes", "备注", "備註"},
}

var importColumns = func() map[string]string {
	m := make(map[string]string)
	for field, aliases := range importAliases {
		for _, a := range aliases {
			m[a] = field
		}
	}
	return m
}()

// ────────────────────── Import ──────────────────────

func (s *volunteerService) Import(ctx context.Context, filename string, data []byte) (*dto.ImportVolunteerResponse, error) {
	rows, err := readImportRows(filename, data)
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, pkgerrors.NewValidationError("文件没有数据行", "file")
	}

	header := make(map[string]int)
	for i, col := range rows[0] {
		col = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(col, "\ufeff")))
		if field, ok := importColumns[col]; ok {
			header[field] = i
		}
	}
	for _, required := range []string{"name", "phone", "email"} {
		if _, ok := header[required]; !ok {
			return nil, pkgerrors.NewValidationError("缺少必要列: "+required, "file")
		}
	}

	body := rows[1:]
	if len(body) > MaxImportRows {
		return nil, pkgerrors.NewValidationError(fmt.Sprintf("单次最多导入 %d 行", MaxImportRows), "file")
	}

	resp := &dto.ImportVolunteerResponse{Total: len(body)}
	for i, row := range body {
		if err := s.importRow(ctx, header, row); err != nil {
			resp.Failed++
			resp.Errors = append(resp.Errors, dto.ImportVolunteerError{Row: i + 1, Reason: importReason(err)})
			continue
		}
		resp.Imported++
	}

	if resp.Imported > 0 {
		invalidateStats(ctx, s.cache, s.logger)
	}
	s.logger.Info("志工导入完成",
		zap.String("file", filename),
		zap.Int("total", resp.Total),
		zap.Int("imported", resp.Imported),
		zap.Int("failed", resp.Failed),
	)
	return resp, nil
}

func (s *volunteerService) importRow(ctx context.Context, header map[string]int, row []string) error {
	cell := func(field string) string {
		i, ok := header[field]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	req := dto.CreateVolunteerRequest{
		Name:             cell("name"),
		Phone:            cell("phone"),
		Email:            cell("email"),
		Department:       cell("department"),
		Skills:           cell("skills"),
		EmergencyContact: cell("emergency_contact"),
		EmergencyPhone:   cell("emergency_phone"),
		Address:          cell("address"),
		BirthDate:        cell("birth_date"),
		Status:           cell("status"),
		Notes:            cell("notes"),
	}
	// 年资无法解析时按 0 处理
	if years, err := strconv.Atoi(cell("experience_years")); err == nil {
		req.ExperienceYears = years
	}

	v, err := newVolunteer(&req, model.VolunteerStatusPending)
	if err != nil {
		return err
	}

	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	if err := s.insert(ctx, v); err != nil {
		return storageError(s.logger, "导入志工", err, zap.String("email", v.Email))
	}
	return nil
}

func importReason(err error) string {
	var ve *pkgerrors.ValidationError
	if errors.As(err, &ve) {
		return ve.Error()
	}
	if errors.Is(err, pkgerrors.ErrConflict) {
		return err.Error()
	}
	return "写入失败"
}

// readImportRows 按扩展名解析 CSV 或 XLSX 第一个工作表
func readImportRows(filename string, data []byte) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		r := csv.NewReader(bytes.NewReader(data))
		r.FieldsPerRecord = -1
		r.TrimLeadingSpace = true
		var rows [][]string
		for {
			rec, err := r.Read()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return nil, pkgerrors.NewValidationError("CSV 格式错误: "+err.Error(), "file")
			}
			if isBlankRow(rec) {
				continue
			}
			rows = append(rows, rec)
		}
		return rows, nil
	case ".xlsx":
		f, err := excelize.OpenReader(bytes.NewReader(data))
		if err != nil {
			return nil, pkgerrors.NewValidationError("Excel 文件无法读取", "file")
		}
		defer f.Close()

		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, pkgerrors.NewValidationError("Excel 文件没有工作表", "file")
		}
		all, err := f.GetRows(sheets[0])
		if err != nil {
			return nil, pkgerrors.NewValidationError("Excel 文件无法读取", "file")
		}
		rows := make([][]string, 0, len(all))
		for _, rec := range all {
			if !isBlankRow(rec) {
				rows = append(rows, rec)
			}
		}
		return rows, nil
	default:
		return nil, pkgerrors.NewValidationError("仅支持 .csv 或 .xlsx 文件", "file")
	}
}

func isBlankRow(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
