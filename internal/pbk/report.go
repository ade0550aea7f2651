package pbk

import (
	"fmt"
	"path/filepath"
	"strings"
)

const reportTimeLayout = "2006-01-02 15:04:05"

var categoryComments = map[Category]string{
	CategoryCode:     "Исходный код проекта",
	CategoryDatabase: "База данных",
	CategoryDocs:     "Документация",
	CategoryScripts:  "Скрипты",
}

var skipReasonText = map[string]string{
	ReasonNotFound: "файл не найден",
	ReasonExcluded: "исключён как секретный",
}

// RenderReport renders the README.md placed at the root of a backup.
// It has no side effects.
func RenderReport(run *Run, versionNote string) string {
	var b strings.Builder

	b.WriteString(strings.TrimSpace("# Полный бэкап проекта " + run.Project))
	b.WriteString("\n\n")

	b.WriteString("## Информация о бэкапе\n\n")
	fmt.Fprintf(&b, "- **Дата создания:** %s\n", run.StartedAt.Format(reportTimeLayout))
	fmt.Fprintf(&b, "- **Версия:** %s\n", versionNote)
	b.WriteString("- **Тип бэкапа:** Полный бэкап проекта\n\n")

	b.WriteString("## Структура бэкапа\n\n")
	b.WriteString("```\n")
	writeTree(&b, run)
	b.WriteString("```\n\n")

	b.WriteString("## Статистика\n\n")
	fmt.Fprintf(&b, "- **Скопировано файлов:** %d\n", len(run.CopiedFiles))
	fmt.Fprintf(&b, "- **Пропущено файлов:** %d\n\n", len(run.SkippedFiles))

	b.WriteString("## Скопированные файлы\n\n")
	if len(run.CopiedFiles) == 0 {
		b.WriteString("- Нет\n")
	}
	for _, f := range run.CopiedFiles {
		fmt.Fprintf(&b, "- %s\n", f)
	}
	b.WriteString("\n")

	b.WriteString("## Пропущенные файлы\n\n")
	if len(run.SkippedFiles) == 0 {
		b.WriteString("- Нет\n")
	}
	for _, f := range run.SkippedFiles {
		reason := run.skipReason(f)
		if text, ok := skipReasonText[reason]; ok {
			reason = text
		}
		if reason != "" {
			fmt.Fprintf(&b, "- %s (%s)\n", f, reason)
		} else {
			fmt.Fprintf(&b, "- %s\n", f)
		}
	}
	b.WriteString("\n")

	b.WriteString("## Восстановление\n\n")
	b.WriteString("Для восстановления проекта из этого бэкапа:\n\n")
	b.WriteString("1. Скопируйте файлы из `code/` в корневую директорию проекта\n")
	b.WriteString("2. Скопируйте файлы из `docs/` в корневую директорию проекта\n")
	b.WriteString("3. Скопируйте файлы из `scripts/` в корневую директорию проекта\n")
	if run.DatabaseFile != "" {
		b.WriteString("4. Восстановите базу данных из `database/` командой `pbk restore`:\n")
		b.WriteString("   ```bash\n")
		fmt.Fprintf(&b, "   pbk restore --backup database/%s\n", run.DatabaseFile)
		b.WriteString("   ```\n\n")
	} else {
		b.WriteString("4. База данных в этот бэкап не вошла\n\n")
	}

	b.WriteString("## Примечания\n\n")
	fmt.Fprintf(&b, "⚠️ **ВАЖНО:** Этот бэкап создан **%s**.\n\n", versionNote)
	b.WriteString("⚠️ **Секретные файлы не включены в бэкап:**\n")
	b.WriteString("- `.env` (переменные окружения)\n")
	b.WriteString("- `google-credentials.json` (учетные данные Google)\n")
	b.WriteString("- Другие файлы с секретными данными\n\n")
	b.WriteString("Убедитесь, что у вас есть отдельные копии этих файлов!\n\n")

	b.WriteString("## Системные требования\n\n")
	b.WriteString("- Python 3.8+\n")
	b.WriteString("- Зависимости из `requirements.txt`\n")
	b.WriteString("- SQLite 3.x\n\n")

	b.WriteString("## Контакты\n\n")
	b.WriteString("При возникновении проблем с восстановлением проверьте:\n")
	b.WriteString("1. Версию Python\n")
	b.WriteString("2. Установленные зависимости\n")
	b.WriteString("3. Целостность базы данных\n")

	return b.String()
}

// writeTree draws the directory layout of the backup with the files that
// were actually copied.
func writeTree(b *strings.Builder, run *Run) {
	fmt.Fprintf(b, "%s/\n", run.Name())
	for _, c := range Categories {
		fmt.Fprintf(b, "├── %-18s # %s\n", string(c)+"/", categoryComments[c])
		entries := run.entriesIn(c)
		for i, e := range entries {
			branch := "├──"
			if i == len(entries)-1 {
				branch = "└──"
			}
			fmt.Fprintf(b, "│   %s %s\n", branch, filepath.Base(e.Destination))
		}
	}
	fmt.Fprintf(b, "├── %-18s # %s\n", "backup.yml", "Метаданные бэкапа")
	fmt.Fprintf(b, "├── %-18s # %s\n", "file_list.txt", "Список файлов")
	fmt.Fprintf(b, "└── %-18s # %s\n", "README.md", "Этот файл")
}

// RenderFileList renders the plain-text file_list.txt placed next to the report.
func RenderFileList(run *Run, versionNote string) string {
	var b strings.Builder
	b.WriteString("Список файлов в бэкапе\n")
	fmt.Fprintf(&b, "Дата создания: %s\n", run.StartedAt.Format(reportTimeLayout))
	fmt.Fprintf(&b, "Версия: %s\n\n", versionNote)

	b.WriteString("Скопированные файлы:\n")
	for _, f := range run.CopiedFiles {
		fmt.Fprintf(&b, "  %s\n", f)
	}
	b.WriteString("\nПропущенные файлы:\n")
	if len(run.SkippedFiles) == 0 {
		b.WriteString("  Нет\n")
	}
	for _, f := range run.SkippedFiles {
		fmt.Fprintf(&b, "  %s\n", f)
	}
	return b.String()
}
