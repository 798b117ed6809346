package seedcmder

type demoDoc struct {
	name    string
	content string
}

// demoDocs is the sample corpus seeded into the library. Small enough to
// index in seconds, varied enough that retrieval questions have distinct
// answers.
var demoDocs = []demoDoc{
	{
		name: "acme-handbook.md",
		content: `# Acme Corp Employee Handbook

## Vacation Policy

Full-time employees accrue 20 vacation days per year, earned at a rate of
1.67 days per month. Unused days roll over up to a maximum of 10 days.
Vacation requests longer than one week require manager approval at least
two weeks in advance.

## Expense Policy

Expenses under $50 do not require a receipt. Expenses between $50 and $500
require a receipt and manager approval. Anything above $500 additionally
requires finance team sign-off before purchase. Reimbursements are paid out
with the next payroll cycle after approval.

## Remote Work

Acme is remote-friendly. Employees may work from anywhere within four hours
of their team's core timezone. Equipment for a home office is covered up to
$1,000 every three years.
`,
	},
	{
		name: "product-faq.md",
		content: `# Widget Pro FAQ

**What is Widget Pro?**
Widget Pro is Acme's flagship automation platform. It connects your tools
and runs workflows on schedules or triggers.

**How much does Widget Pro cost?**
The Starter plan is $29/month for up to 5 workflows. The Team plan is
$99/month with unlimited workflows and priority support. Enterprise pricing
is custom.

**What is the refund policy?**
Monthly plans can be cancelled anytime and are refunded pro-rata within the
first 14 days. Annual plans have a 30-day full refund window. After that,
refunds are handled case by case by support.

**Does Widget Pro have an API?**
Yes. Every plan includes REST API access. Rate limits are 60 requests per
minute on Starter and 600 on Team and above.
`,
	},
	{
		name: "onboarding.txt",
		content: `Acme Engineering Onboarding Guide

Week 1: Accounts and access. Your manager files the access request on day
one; expect laptop, email, and VPN by day two. Complete the security
training before requesting production access.

Week 2: First change. Pick a starter task from the onboarding board, pair
with your onboarding buddy, and ship a change end to end. Every engineer
deploys in their first two weeks.

Week 3 and beyond: On-call shadowing. You shadow a primary on-call rotation
for two weeks before joining the rotation yourself. The runbook lives in
the operations handbook; read the incident review archive for context.

Key contacts: IT helpdesk for hardware, #eng-onboarding for process
questions, your onboarding buddy for everything else.
`,
	},
}
