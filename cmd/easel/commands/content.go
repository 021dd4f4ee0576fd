package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/easelhq/easel/content"
	"github.com/easelhq/easel/errors"
	"github.com/easelhq/easel/publish"
)

// ContentCmd represents the content command
var ContentCmd = &cobra.Command{
	Use:   "content",
	Short: "Create, list, and review content records",
	Long: `Manage content records and their review lifecycle.

Examples:
  easel content create --title "Launch post" --type post --tags launch,news
  easel content ls --status draft
  easel content show <id>
  easel content approve <id>
  easel content reject <id>`,
}

var contentCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a draft content record",
	RunE:  runContentCreate,
}

var contentEditCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Edit the authoring fields of a content record",
	Args:  cobra.ExactArgs(1),
	RunE:  runContentEdit,
}

var contentLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List content records",
	RunE:  runContentLs,
}

var contentShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one content record",
	Args:  cobra.ExactArgs(1),
	RunE:  runContentShow,
}

var contentApproveCmd = &cobra.Command{
	Use:   "approve <id>",
	Short: "Approve a content record awaiting review",
	Args:  cobra.ExactArgs(1),
	RunE:  runContentReview(true),
}

var contentRejectCmd = &cobra.Command{
	Use:   "reject <id>",
	Short: "Reject a content record awaiting review",
	Args:  cobra.ExactArgs(1),
	RunE:  runContentReview(false),
}

var (
	contentTitleFlag       string
	contentDescriptionFlag string
	contentTypeFlag        string
	contentMediaFlag       []string
	contentTagsFlag        []string
	contentStatusFlag      string
	contentLsTypeFlag      string
	contentLimitFlag       int
)

func init() {
	ContentCmd.AddCommand(contentCreateCmd)
	ContentCmd.AddCommand(contentEditCmd)
	ContentCmd.AddCommand(contentLsCmd)
	ContentCmd.AddCommand(contentShowCmd)
	ContentCmd.AddCommand(contentApproveCmd)
	ContentCmd.AddCommand(contentRejectCmd)

	contentCreateCmd.Flags().StringVar(&contentTitleFlag, "title", "", "Content title (required)")
	contentCreateCmd.Flags().StringVar(&contentDescriptionFlag, "description", "", "Content description")
	contentCreateCmd.Flags().StringVar(&contentTypeFlag, "type", "post", "Content type: post, carousel, video, story")
	contentCreateCmd.Flags().StringSliceVar(&contentMediaFlag, "media", nil, "Media resource locators")
	contentCreateCmd.Flags().StringSliceVar(&contentTagsFlag, "tags", nil, "Tags")
	contentCreateCmd.MarkFlagRequired("title")

	contentEditCmd.Flags().String("title", "", "New title")
	contentEditCmd.Flags().String("description", "", "New description")
	contentEditCmd.Flags().StringSlice("media", nil, "Replacement media resource locators")
	contentEditCmd.Flags().StringSlice("tags", nil, "Replacement tags")

	contentLsCmd.Flags().StringVar(&contentStatusFlag, "status", "", "Filter by status")
	contentLsCmd.Flags().StringVar(&contentLsTypeFlag, "type", "", "Filter by type")
	contentLsCmd.Flags().IntVar(&contentLimitFlag, "limit", 0, "Maximum records to list")
	contentLsCmd.Flags().Bool("json", false, "Output as JSON")

	contentShowCmd.Flags().Bool("json", false, "Output as JSON")
}

func runContentCreate(cmd *cobra.Command, args []string) error {
	if strings.TrimSpace(contentTitleFlag) == "" {
		return errors.NewInvalidRequestError("title must not be empty")
	}
	if !content.ValidType(content.Type(contentTypeFlag)) {
		return errors.NewInvalidRequestError("unknown content type %q", contentTypeFlag)
	}

	database, err := openDatabase("")
	if err != nil {
		return err
	}
	defer database.Close()

	c := content.New(contentTitleFlag, contentDescriptionFlag, content.Type(contentTypeFlag))
	c.Media = contentMediaFlag
	c.Tags = contentTagsFlag

	if err := content.NewStore(database).Create(cmd.Context(), c); err != nil {
		return err
	}

	pterm.Success.Printf("Created %s content %s\n", c.Type, c.ID)
	return nil
}

func runContentEdit(cmd *cobra.Command, args []string) error {
	database, err := openDatabase("")
	if err != nil {
		return err
	}
	defer database.Close()

	store := content.NewStore(database)
	c, err := store.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("title") {
		c.Title, _ = cmd.Flags().GetString("title")
		if strings.TrimSpace(c.Title) == "" {
			return errors.NewInvalidRequestError("title must not be empty")
		}
	}
	if cmd.Flags().Changed("description") {
		c.Description, _ = cmd.Flags().GetString("description")
	}
	if cmd.Flags().Changed("media") {
		c.Media, _ = cmd.Flags().GetStringSlice("media")
	}
	if cmd.Flags().Changed("tags") {
		c.Tags, _ = cmd.Flags().GetStringSlice("tags")
	}

	if err := store.Update(cmd.Context(), c); err != nil {
		return err
	}

	pterm.Success.Printf("Updated content %s\n", c.ID)
	return nil
}

func runContentLs(cmd *cobra.Command, args []string) error {
	if contentStatusFlag != "" && !content.ValidStatus(content.Status(contentStatusFlag)) {
		return errors.NewInvalidRequestError("unknown status %q", contentStatusFlag)
	}
	if contentLsTypeFlag != "" && !content.ValidType(content.Type(contentLsTypeFlag)) {
		return errors.NewInvalidRequestError("unknown content type %q", contentLsTypeFlag)
	}

	database, err := openDatabase("")
	if err != nil {
		return err
	}
	defer database.Close()

	contents, err := content.NewStore(database).List(cmd.Context(), content.Filter{
		Status: content.Status(contentStatusFlag),
		Type:   content.Type(contentLsTypeFlag),
		Limit:  contentLimitFlag,
	})
	if err != nil {
		return err
	}

	if useJSON, _ := cmd.Flags().GetBool("json"); useJSON {
		return json.NewEncoder(os.Stdout).Encode(contents)
	}

	if len(contents) == 0 {
		pterm.Info.Println("No content records")
		return nil
	}

	data := pterm.TableData{{"ID", "Title", "Type", "Status", "Scheduled", "Published"}}
	for _, c := range contents {
		data = append(data, []string{
			shortID(c.ID),
			c.Title,
			string(c.Type),
			string(c.Status),
			formatOptionalTime(c.ScheduledAt),
			formatOptionalTime(c.PublishedAt),
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func runContentShow(cmd *cobra.Command, args []string) error {
	database, err := openDatabase("")
	if err != nil {
		return err
	}
	defer database.Close()

	c, err := content.NewStore(database).Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	if useJSON, _ := cmd.Flags().GetBool("json"); useJSON {
		return json.NewEncoder(os.Stdout).Encode(c)
	}

	pterm.DefaultSection.Println(c.Title)
	fmt.Printf("ID:          %s\n", c.ID)
	fmt.Printf("Type:        %s\n", c.Type)
	fmt.Printf("Status:      %s\n", c.Status)
	fmt.Printf("Description: %s\n", c.Description)
	fmt.Printf("Media:       %s\n", strings.Join(c.Media, ", "))
	fmt.Printf("Tags:        %s\n", strings.Join(c.Tags, ", "))
	fmt.Printf("Scheduled:   %s\n", formatOptionalTime(c.ScheduledAt))
	fmt.Printf("Published:   %s\n", formatOptionalTime(c.PublishedAt))
	fmt.Printf("Views:       %d\n", c.ViewCount)
	fmt.Printf("Engagement:  %.1f\n", c.EngagementScore)
	fmt.Printf("Created:     %s\n", c.CreatedAt.Format("2006-01-02 15:04"))
	return nil
}

func runContentReview(approve bool) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		database, err := openDatabase("")
		if err != nil {
			return err
		}
		defer database.Close()

		scheduler := publish.NewScheduler(content.NewStore(database), publish.NewStore(database))

		if approve {
			if err := scheduler.Approve(cmd.Context(), args[0]); err != nil {
				return err
			}
			pterm.Success.Printf("Approved content %s\n", args[0])
		} else {
			if err := scheduler.Reject(cmd.Context(), args[0]); err != nil {
				return err
			}
			pterm.Success.Printf("Rejected content %s\n", args[0])
		}
		return nil
	}
}
