package emailtemplates

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/template"
)

func ResolveTemplate(tempName string, templateDef string, contentInfos map[string]string) (content string, err error) {
	if strings.TrimSpace(templateDef) == "" {
		return "", errors.New("empty template `" + tempName)
	}
	tmpl, err := template.New(tempName).Parse(templateDef)
	if err != nil {
		err = fmt.Errorf("error when parsing template %s: %v", tempName, err)
		return "", err
	}
	var tpl bytes.Buffer

	err = tmpl.Execute(&tpl, contentInfos)
	if err != nil {
		err = fmt.Errorf("error during executing template %s: %v", tempName, err)
		return "", err
	}
	return tpl.String(), nil
}

// LoadTemplateFromFile reads a template definition and checks that it
// parses, so a broken override file surfaces at startup instead of on the
// first send.
func LoadTemplateFromFile(tempName string, path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	templateDef := string(content)
	if _, err := ResolveTemplate(tempName, templateDef, make(map[string]string)); err != nil {
		return "", err
	}
	return templateDef, nil
}
